package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"chirp/internal/domain"
	"chirp/internal/notify"
	"chirp/internal/observability"
	"chirp/internal/repository"
	"chirp/internal/storage"
)

// PostService orquesta la creación, el borrado y la lectura de posts.
type PostService struct {
	logger   *zap.Logger
	posts    repository.PostRepository
	users    repository.UserRepository
	limiter  *PostRateLimiter
	sink     storage.Sink
	notifier notify.Notifier
	now      func() time.Time
	newID    func() string
}

var ErrPostServiceNotConfigured = errors.New("post service not configured")

func NewPostService(
	logger *zap.Logger,
	posts repository.PostRepository,
	users repository.UserRepository,
	limiter *PostRateLimiter,
	sink storage.Sink,
	notifier notify.Notifier,
) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewPostRateLimiter(DefaultPostRateLimit, DefaultPostRateWindow)
	}
	return &PostService{
		logger:   logger,
		posts:    posts,
		users:    users,
		limiter:  limiter,
		sink:     sink,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// MaxAttachmentBytes es el tamaño máximo aceptado para un adjunto.
const MaxAttachmentBytes = 10 << 20

// Attachment es el archivo opcional que acompaña al post.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreatePostInput struct {
	Message    string
	Attachment *Attachment
}

// RateLimitMessage es el texto que se devuelve cuando Create falla con ErrRateLimited.
func (s *PostService) RateLimitMessage() string {
	return s.limiter.Message()
}

// CanPost indica si el viewer podría crear un post ahora mismo.
func (s *PostService) CanPost(ctx context.Context, viewer domain.Viewer) (bool, error) {
	if !viewer.Authenticated {
		return false, nil
	}
	return s.limiter.Allow(ctx, s.posts, viewer.User.ID)
}

// Admit corre los pasos previos a leer el contenido: autenticación y límite.
// Devuelve ErrUnauthenticated, ErrRateLimited o una falla de storage.
func (s *PostService) Admit(ctx context.Context, viewer domain.Viewer) error {
	if s == nil || s.posts == nil {
		return ErrPostServiceNotConfigured
	}
	if !viewer.Authenticated {
		observability.PostsRejected.WithLabelValues(observability.RejectUnauthenticated).Inc()
		return ErrUnauthenticated
	}
	allowed, err := s.limiter.Allow(ctx, s.posts, viewer.User.ID)
	if err != nil {
		return s.storageFailure("rate limit check failed", viewer.User.ID, err)
	}
	if !allowed {
		observability.PostsRejected.WithLabelValues(observability.RejectRateLimited).Inc()
		return ErrRateLimited
	}
	return nil
}

// Create ejecuta el pipeline: autenticación, límite, validación, persistencia con adjunto y aviso.
func (s *PostService) Create(ctx context.Context, viewer domain.Viewer, input CreatePostInput) (domain.Post, error) {
	if err := s.Admit(ctx, viewer); err != nil {
		return domain.Post{}, err
	}
	owner := viewer.User

	if verr := validatePost(input); verr != nil {
		observability.PostsRejected.WithLabelValues(observability.RejectInvalid).Inc()
		return domain.Post{}, verr
	}
	if input.Attachment != nil && s.sink == nil {
		return domain.Post{}, s.storageFailure("attachment sink not configured", owner.ID, errors.New("no sink"))
	}

	post := domain.Post{
		ID:          s.newID(),
		UserID:      owner.ID,
		OwnerHandle: owner.Handle,
		Message:     input.Message,
	}

	var blobRef string
	err := s.posts.WithUserLock(ctx, owner.ID, func(w repository.PostWriter) error {
		// Otra request del mismo usuario pudo insertar entre el chequeo previo y el lock.
		allowed, err := s.limiter.Allow(ctx, w, owner.ID)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}

		if input.Attachment != nil {
			ref, err := s.sink.Put(ctx, post.ID, input.Attachment.Filename, bytes.NewReader(input.Attachment.Data))
			if err != nil {
				return fmt.Errorf("store attachment: %w", err)
			}
			blobRef = ref
			post.AttachmentRef = ref
		}

		post.CreatedAt = s.now()
		return w.Insert(ctx, post)
	})
	if err != nil {
		if blobRef != "" {
			s.discardBlob(ctx, blobRef, post.ID)
		}
		if errors.Is(err, ErrRateLimited) {
			observability.PostsRejected.WithLabelValues(observability.RejectRateLimited).Inc()
			return domain.Post{}, ErrRateLimited
		}
		return domain.Post{}, s.storageFailure("persist post failed", owner.ID, err)
	}

	observability.PostsCreated.Inc()
	s.logger.Info("post created",
		zap.String("post_id", post.ID),
		zap.String("user_id", owner.ID),
		zap.Bool("attachment", post.HasAttachment()),
	)

	s.dispatchNotification(post, owner)
	return post, nil
}

func validatePost(input CreatePostInput) *ValidationError {
	verr := &ValidationError{}
	switch {
	case strings.TrimSpace(input.Message) == "":
		verr.Add("message", "can't be blank")
	case utf8.RuneCountInString(input.Message) > domain.MaxPostLength:
		verr.Add("message", fmt.Sprintf("is too long (maximum is %d characters)", domain.MaxPostLength))
	}
	if input.Attachment != nil {
		switch n := len(input.Attachment.Data); {
		case n == 0:
			verr.Add("attachment", "can't be empty")
		case n > MaxAttachmentBytes:
			verr.Add("attachment", "is too large (maximum is 10 MB)")
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (s *PostService) storageFailure(msg, userID string, err error) error {
	observability.PostsRejected.WithLabelValues(observability.RejectStorage).Inc()
	s.logger.Error(msg, zap.String("user_id", userID), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// discardBlob borra un adjunto que quedó sin post. Corre aunque la request se haya cancelado.
func (s *PostService) discardBlob(ctx context.Context, ref, postID string) {
	if err := s.sink.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Error("discard attachment failed",
			zap.String("post_id", postID),
			zap.String("attachment_ref", ref),
			zap.Error(err),
		)
	}
}

// dispatchNotification lanza el aviso una sola vez y no espera el resultado.
func (s *PostService) dispatchNotification(post domain.Post, owner domain.User) {
	if s.notifier == nil {
		return
	}
	event := notify.NewEvent(post, owner)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.NotificationFailures.Inc()
				s.logger.Error("post notification panicked", zap.String("post_id", event.PostID), zap.Any("panic", r))
			}
		}()
		if err := s.notifier.PostCreated(context.Background(), event); err != nil {
			observability.NotificationFailures.Inc()
			s.logger.Warn("post notification failed", zap.String("post_id", event.PostID), zap.Error(err))
		}
	}()
}

// Delete borra el post si el viewer es su dueño.
func (s *PostService) Delete(ctx context.Context, viewer domain.Viewer, postID string) error {
	if s == nil || s.posts == nil {
		return ErrPostServiceNotConfigured
	}
	if !viewer.Authenticated {
		return ErrUnauthenticated
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return ErrPostNotFound
	}

	post, err := s.posts.GetByID(ctx, postID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		s.logger.Error("load post failed", zap.String("post_id", postID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	if post.UserID != viewer.User.ID {
		return ErrNotPostOwner
	}

	deleted, err := s.posts.DeleteOwned(ctx, post.ID, viewer.User.ID)
	if err != nil {
		s.logger.Error("delete post failed", zap.String("post_id", postID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	if !deleted {
		return ErrPostNotFound
	}

	observability.PostsDeleted.Inc()
	if post.HasAttachment() && s.sink != nil {
		s.discardBlob(ctx, post.AttachmentRef, post.ID)
	}
	return nil
}

// ListAll devuelve todos los posts, del más nuevo al más viejo.
func (s *PostService) ListAll(ctx context.Context) ([]domain.Post, error) {
	if s == nil || s.posts == nil {
		return nil, ErrPostServiceNotConfigured
	}
	return s.posts.ListAll(ctx)
}

// ListByOwnerHandle devuelve los posts del usuario en orden de creación.
func (s *PostService) ListByOwnerHandle(ctx context.Context, handle string) ([]domain.Post, error) {
	if s == nil || s.posts == nil || s.users == nil {
		return nil, ErrPostServiceNotConfigured
	}
	handle = normalizeHandle(handle)
	if handle == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByHandle(ctx, handle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.posts.ListByUserID(ctx, user.ID)
}
