package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"chirp/internal/domain"
	"chirp/internal/repository"
)

// SessionResolver traduce la credencial de una request en un Viewer.
// Credenciales ausentes, adulteradas, desconocidas o vencidas producen un Viewer anónimo sin error;
// solo las fallas de infraestructura devuelven error. Nunca crea sesiones.
type SessionResolver struct {
	logger   *zap.Logger
	signer   *TokenSigner
	sessions repository.SessionRepository
	users    repository.UserRepository
	cache    SessionCache
	now      func() time.Time
}

func NewSessionResolver(
	logger *zap.Logger,
	signer *TokenSigner,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	cache SessionCache,
) *SessionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionResolver{
		logger:   logger,
		signer:   signer,
		sessions: sessions,
		users:    users,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *SessionResolver) Resolve(ctx context.Context, credential string) (domain.Viewer, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" || r == nil || r.signer == nil {
		return domain.Anonymous(), nil
	}
	claims, err := r.signer.Verify(credential)
	if err != nil {
		return domain.Anonymous(), nil
	}
	token := claims.SessionToken

	userID, ok := r.lookupCache(ctx, token)
	if !ok {
		session, err := r.sessions.GetByToken(ctx, token)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Anonymous(), nil
		}
		if err != nil {
			return domain.Anonymous(), fmt.Errorf("lookup session: %w", err)
		}
		now := r.now()
		if session.Expired(now) {
			return domain.Anonymous(), nil
		}
		userID = session.UserID
		r.storeCache(ctx, token, userID, session.ExpiresAt.Sub(now))
	}

	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		r.revokeCache(ctx, token)
		return domain.Anonymous(), nil
	}
	if err != nil {
		return domain.Anonymous(), fmt.Errorf("lookup session user: %w", err)
	}
	return domain.AuthenticatedAs(user), nil
}

func (r *SessionResolver) lookupCache(ctx context.Context, token string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	userID, ok, err := r.cache.Lookup(ctx, token)
	if err != nil {
		r.logger.Warn("session cache lookup failed", zap.Error(err))
		return "", false
	}
	return userID, ok
}

func (r *SessionResolver) storeCache(ctx context.Context, token, userID string, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Store(ctx, token, userID, ttl); err != nil {
		r.logger.Warn("session cache store failed", zap.Error(err))
	}
}

func (r *SessionResolver) revokeCache(ctx context.Context, token string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Revoke(ctx, token); err != nil {
		r.logger.Warn("session cache revoke failed", zap.Error(err))
	}
}
