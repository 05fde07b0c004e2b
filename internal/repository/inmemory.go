package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"chirp/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria. Pensado para tests y la consola local.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	byID     map[string]domain.User
	byHandle map[string]string
	byEmail  map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:     make(map[string]domain.User),
		byHandle: make(map[string]string),
		byEmail:  make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHandle[user.Handle]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return ErrDuplicate
	}
	r.byID[user.ID] = user
	r.byHandle[user.Handle] = user.ID
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByHandle(ctx context.Context, handle string) (domain.User, error) {
	r.mu.RLock()
	id, ok := r.byHandle[handle]
	r.mu.RUnlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

type MemorySessionRepository struct {
	mu      sync.RWMutex
	byToken map[string]domain.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{byToken: make(map[string]domain.Session)}
}

func (r *MemorySessionRepository) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[session.Token]; ok {
		return ErrDuplicate
	}
	r.byToken[session.Token] = session
	return nil
}

func (r *MemorySessionRepository) GetByToken(_ context.Context, token string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byToken[token]
	if !ok {
		return domain.Session{}, pgx.ErrNoRows
	}
	return session, nil
}

func (r *MemorySessionRepository) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

// MemoryPostRepository replica la semántica de PgPostRepository, incluido el lock por usuario.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]domain.Post

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts: make(map[string]domain.Post),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *MemoryPostRepository) CountSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.posts {
		if p.UserID == userID && p.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryPostRepository) userLock(userID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *MemoryPostRepository) WithUserLock(ctx context.Context, userID string, fn func(w PostWriter) error) error {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	w := &memoryPostWriter{repo: r}
	if err := fn(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range w.pending {
		r.posts[p.ID] = p
	}
	return nil
}

type memoryPostWriter struct {
	repo    *MemoryPostRepository
	pending []domain.Post
}

func (w *memoryPostWriter) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	n, err := w.repo.CountSince(ctx, userID, since)
	if err != nil {
		return 0, err
	}
	for _, p := range w.pending {
		if p.UserID == userID && p.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (w *memoryPostWriter) Insert(_ context.Context, post domain.Post) error {
	w.repo.mu.RLock()
	_, exists := w.repo.posts[post.ID]
	w.repo.mu.RUnlock()
	if exists {
		return ErrDuplicate
	}
	w.pending = append(w.pending, post)
	return nil
}

func (r *MemoryPostRepository) GetByID(_ context.Context, id string) (domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	post, ok := r.posts[id]
	if !ok {
		return domain.Post{}, pgx.ErrNoRows
	}
	return post, nil
}

func (r *MemoryPostRepository) DeleteOwned(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.UserID != userID {
		return false, nil
	}
	delete(r.posts, id)
	return true, nil
}

func (r *MemoryPostRepository) ListAll(_ context.Context) ([]domain.Post, error) {
	r.mu.RLock()
	posts := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, p)
	}
	r.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func (r *MemoryPostRepository) ListByUserID(_ context.Context, userID string) ([]domain.Post, error) {
	r.mu.RLock()
	posts := []domain.Post{}
	for _, p := range r.posts {
		if p.UserID == userID {
			posts = append(posts, p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})
	return posts, nil
}
