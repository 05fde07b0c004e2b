package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chirp/internal/observability"
)

// RouterOptions agrupa la configuración del router que no son handlers.
type RouterOptions struct {
	CookieName    string
	AttachmentURL string
	AttachmentDir string
	RPS           float64
	Burst         int
	// Ping verifica la base para /healthz. Nil significa siempre sano.
	Ping func(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	ctx context.Context,
	logger *zap.Logger,
	opts RouterOptions,
	resolver ViewerResolver,
	authH *AuthHandler,
	postH *PostHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), metricsMiddleware())
	if opts.RPS > 0 {
		throttle := newClientThrottle(opts.RPS, opts.Burst)
		throttle.startJanitor(ctx, 2*time.Minute)
		r.Use(throttle.middleware())
	}

	r.GET("/healthz", healthHandler(opts.Ping))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.AttachmentDir != "" {
		r.Static(attachmentRoute(opts.AttachmentURL), opts.AttachmentDir)
	}

	api := r.Group("", jsonContentTypeMiddleware(), SessionMiddleware(logger, resolver, opts.CookieName))

	api.POST("/users", authH.Register)
	api.GET("/users/:handle/posts", postH.ListUserPosts)
	api.POST("/sessions", authH.Login)
	api.DELETE("/sessions", authH.Logout)

	api.GET("/posts", postH.ListPosts)
	api.POST("/posts", postH.CreatePost)
	api.DELETE("/posts/:id", postH.DeletePost)

	return r
}

// attachmentRoute extrae el path de la URL base de adjuntos, que puede ser absoluta.
func attachmentRoute(baseURL string) string {
	route := baseURL
	if i := strings.Index(route, "://"); i >= 0 {
		route = route[i+3:]
		if j := strings.Index(route, "/"); j >= 0 {
			route = route[j:]
		} else {
			route = "/"
		}
	}
	route = "/" + strings.Trim(route, "/")
	if route == "/" {
		return "/attachments"
	}
	return route
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if viewer := CurrentViewer(c); viewer.Authenticated {
			fields = append(fields, zap.String("user_id", viewer.User.ID))
		}
		logger.Info("request", fields...)
	}
}

// metricsMiddleware registra la latencia por ruta. Las rutas no matcheadas van como "unmatched".
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
