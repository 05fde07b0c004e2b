package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chirp/internal/domain"
)

// PostWriter opera dentro de la sección crítica de un usuario.
type PostWriter interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	Insert(ctx context.Context, post domain.Post) error
}

type PostRepository interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	// WithUserLock ejecuta fn serializado con cualquier otra llamada del mismo usuario.
	// Si fn devuelve error no se persiste nada de lo escrito con el PostWriter.
	WithUserLock(ctx context.Context, userID string, fn func(w PostWriter) error) error
	GetByID(ctx context.Context, id string) (domain.Post, error)
	DeleteOwned(ctx context.Context, id, userID string) (bool, error)
	ListAll(ctx context.Context) ([]domain.Post, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.Post, error)
}

type PgPostRepository struct {
	pool *pgxpool.Pool
}

func NewPgPostRepository(pool *pgxpool.Pool) *PgPostRepository {
	return &PgPostRepository{pool: pool}
}

const postColumns = `p.id, p.user_id, u.handle, p.message, p.attachment_ref, p.created_at`

// querier cubre lo que usamos tanto de pgxpool.Pool como de pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type execQuerier interface {
	querier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func countSince(ctx context.Context, q querier, userID string, since time.Time) (int, error) {
	const query = `
		SELECT count(*)
		FROM posts
		WHERE user_id = $1 AND created_at > $2
	`
	var n int
	if err := q.QueryRow(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgPostRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return countSince(ctx, r.pool, userID, since)
}

func (r *PgPostRepository) WithUserLock(ctx context.Context, userID string, fn func(w PostWriter) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// El lock se libera solo al terminar la transacción.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return err
	}
	if err := fn(&pgPostWriter{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgPostWriter struct {
	q execQuerier
}

func (w *pgPostWriter) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return countSince(ctx, w.q, userID, since)
}

func (w *pgPostWriter) Insert(ctx context.Context, post domain.Post) error {
	const query = `
		INSERT INTO posts (id, user_id, message, attachment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	var attachmentRef interface{}
	if post.AttachmentRef != "" {
		attachmentRef = post.AttachmentRef
	}

	_, err := w.q.Exec(ctx, query,
		post.ID,
		post.UserID,
		post.Message,
		attachmentRef,
		post.CreatedAt,
	)
	return err
}

func (r *PgPostRepository) GetByID(ctx context.Context, id string) (domain.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`
	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, err
	}
	return post, err
}

func (r *PgPostRepository) DeleteOwned(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgPostRepository) ListAll(ctx context.Context) ([]domain.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC, p.id DESC
	`
	return r.list(ctx, query)
}

func (r *PgPostRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
		ORDER BY p.created_at ASC, p.id ASC
	`
	return r.list(ctx, query, userID)
}

func (r *PgPostRepository) list(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

func scanPost(row pgx.Row) (domain.Post, error) {
	var post domain.Post
	var attachmentRef *string
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.OwnerHandle,
		&post.Message,
		&attachmentRef,
		&post.CreatedAt,
	)
	if err != nil {
		return domain.Post{}, err
	}
	if attachmentRef != nil {
		post.AttachmentRef = *attachmentRef
	}
	return post, nil
}
