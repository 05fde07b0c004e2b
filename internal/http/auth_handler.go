package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chirp/internal/service"
)

// CookieConfig describe la cookie que transporta la credencial de sesión.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// AuthHandler mantiene dependencias para registro, login y logout.
type AuthHandler struct {
	logger   *zap.Logger
	users    *service.UserService
	sessions *service.SessionService
	cookie   CookieConfig
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, users *service.UserService, sessions *service.SessionService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		users:    users,
		sessions: sessions,
		cookie:   cookie,
	}
}

// Register maneja POST /users.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Handle   string `json:"handle"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid", "message": "invalid request"}})
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Handle:   req.Handle,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{"kind": "invalid", "fields": verr.Fields}})
		case errors.Is(err, service.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"kind": "conflict", "message": "handle or email already taken"}})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "storage", "message": "could not create user"}})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /sessions.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Handle   string `json:"handle" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid", "message": "invalid request"}})
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), req.Handle, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "unauthenticated", "message": "invalid credentials"}})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "storage", "message": "could not login"}})
		return
	}

	h.setSessionCookie(c, result.Credential, int(h.cookie.TTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"user": result.User, "token": result.Credential})
}

// Logout maneja DELETE /sessions.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), credentialFromRequest(c, h.cookie.Name)); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "storage", "message": "could not logout"}})
		return
	}
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	if h.cookie.Name == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
