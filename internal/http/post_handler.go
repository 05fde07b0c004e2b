package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chirp/internal/domain"
	"chirp/internal/service"
)

// PostHandler expone la creación, el borrado y los listados de posts.
type PostHandler struct {
	logger *zap.Logger
	posts  *service.PostService
}

func NewPostHandler(logger *zap.Logger, posts *service.PostService) *PostHandler {
	return &PostHandler{logger: logger, posts: posts}
}

type postResponse struct {
	ID            string    `json:"id"`
	OwnerHandle   string    `json:"owner_handle"`
	Message       string    `json:"message"`
	AttachmentRef *string   `json:"attachment_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPostResponse(p domain.Post) postResponse {
	resp := postResponse{
		ID:          p.ID,
		OwnerHandle: p.OwnerHandle,
		Message:     p.Message,
		CreatedAt:   p.CreatedAt,
	}
	if p.HasAttachment() {
		ref := p.AttachmentRef
		resp.AttachmentRef = &ref
	}
	return resp
}

func toPostResponses(posts []domain.Post) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	return out
}

// CreatePost maneja POST /posts con JSON o multipart.
func (h *PostHandler) CreatePost(c *gin.Context) {
	viewer := CurrentViewer(c)
	// El body se lee recién después de autenticar y chequear el límite.
	if err := h.posts.Admit(c.Request.Context(), viewer); err != nil {
		h.writeCreateError(c, err)
		return
	}

	input, err := readCreatePostInput(c)
	if err != nil {
		h.logger.Warn("invalid create post request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid", "message": "invalid request"}})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), viewer, input)
	if err != nil {
		h.writeCreateError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": toPostResponse(post)})
}

func (h *PostHandler) writeCreateError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.AbortWithStatus(http.StatusUnauthorized)
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{"kind": "rate_limited", "message": h.posts.RateLimitMessage()},
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{"kind": "invalid", "fields": verr.Fields}})
	default:
		h.logger.Error("create post failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"kind": "storage", "message": "could not save post"},
		})
	}
}

// readCreatePostInput lee el body. Del adjunto se lee como mucho un byte más que el máximo
// para que la validación del servicio detecte el exceso.
func readCreatePostInput(c *gin.Context) (service.CreatePostInput, error) {
	if c.ContentType() != "multipart/form-data" {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return service.CreatePostInput{}, err
		}
		return service.CreatePostInput{Message: req.Message}, nil
	}

	input := service.CreatePostInput{Message: c.PostForm("message")}
	header, err := c.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil
	}
	if err != nil {
		return input, err
	}

	f, err := header.Open()
	if err != nil {
		return input, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, service.MaxAttachmentBytes+1))
	if err != nil {
		return input, err
	}
	input.Attachment = &service.Attachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return input, nil
}

// DeletePost maneja DELETE /posts/:id. Toda falla esperada se colapsa en success=false.
func (h *PostHandler) DeletePost(c *gin.Context) {
	err := h.posts.Delete(c.Request.Context(), CurrentViewer(c), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrNotPostOwner):
		c.JSON(http.StatusOK, gin.H{"success": false})
	default:
		h.logger.Error("delete post failed", zap.String("post_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
	}
}

// ListPosts maneja GET /posts.
func (h *PostHandler) ListPosts(c *gin.Context) {
	posts, err := h.posts.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("list posts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "storage", "message": "could not list posts"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toPostResponses(posts)})
}

// ListUserPosts maneja GET /users/:handle/posts.
func (h *PostHandler) ListUserPosts(c *gin.Context) {
	posts, err := h.posts.ListByOwnerHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": "not_found", "message": "user not found"}})
			return
		}
		h.logger.Error("list user posts failed", zap.String("handle", c.Param("handle")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "storage", "message": "could not list posts"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toPostResponses(posts)})
}
