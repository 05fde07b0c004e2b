package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chirp/internal/domain"
)

const viewerKey = "viewer"

// ViewerResolver resuelve la credencial de la request en un Viewer.
type ViewerResolver interface {
	Resolve(ctx context.Context, credential string) (domain.Viewer, error)
}

// SessionMiddleware resuelve la sesión una sola vez por request y guarda el Viewer en el contexto.
// Nunca rechaza requests anónimas; eso lo decide cada handler.
func SessionMiddleware(logger *zap.Logger, resolver ViewerResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver == nil {
			c.Set(viewerKey, domain.Anonymous())
			c.Next()
			return
		}

		viewer, err := resolver.Resolve(c.Request.Context(), credentialFromRequest(c, cookieName))
		if err != nil {
			logger.Error("session resolution failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"kind": "storage", "message": "could not resolve session"},
			})
			return
		}

		c.Set(viewerKey, viewer)
		c.Next()
	}
}

// CurrentViewer obtiene el Viewer resuelto por SessionMiddleware. Sin middleware es anónimo.
func CurrentViewer(c *gin.Context) domain.Viewer {
	val, ok := c.Get(viewerKey)
	if !ok {
		return domain.Anonymous()
	}
	viewer, ok := val.(domain.Viewer)
	if !ok {
		return domain.Anonymous()
	}
	return viewer
}

// credentialFromRequest lee la cookie de sesión y, si no está, el header Authorization: Bearer.
func credentialFromRequest(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}
