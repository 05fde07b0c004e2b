package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chirp/internal/domain"
	"chirp/internal/repository"
)

// SessionService maneja login y logout. La resolución por request vive en SessionResolver.
type SessionService struct {
	logger   *zap.Logger
	users    *UserService
	sessions repository.SessionRepository
	cache    SessionCache
	signer   *TokenSigner
	ttl      time.Duration
}

func NewSessionService(
	logger *zap.Logger,
	users *UserService,
	sessions repository.SessionRepository,
	cache SessionCache,
	signer *TokenSigner,
	ttl time.Duration,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &SessionService{
		logger:   logger,
		users:    users,
		sessions: sessions,
		cache:    cache,
		signer:   signer,
		ttl:      ttl,
	}
}

type LoginResult struct {
	User       domain.User
	Session    domain.Session
	Credential string
}

func (s *SessionService) Login(ctx context.Context, handle, password string) (LoginResult, error) {
	if s.users == nil || s.sessions == nil || s.signer == nil {
		return LoginResult{}, errors.New("session service not configured")
	}
	user, err := s.users.Authenticate(ctx, handle, password)
	if err != nil {
		return LoginResult{}, err
	}

	now := time.Now().UTC()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	credential, err := s.signer.Sign(session.Token, user.ID, session.ExpiresAt)
	if err != nil {
		return LoginResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, session.Token, user.ID, s.ttl); err != nil {
			s.logger.Warn("session cache store failed", zap.Error(err))
		}
	}

	s.logger.Info("session created", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return LoginResult{User: user, Session: session, Credential: credential}, nil
}

// Logout destruye la sesión referida por la credencial. Es idempotente.
func (s *SessionService) Logout(ctx context.Context, credential string) error {
	if s.signer == nil || s.sessions == nil {
		return errors.New("session service not configured")
	}
	claims, err := s.signer.Verify(credential)
	if err != nil {
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Revoke(ctx, claims.SessionToken); err != nil {
			s.logger.Warn("session cache revoke failed", zap.Error(err))
		}
	}
	if err := s.sessions.DeleteByToken(ctx, claims.SessionToken); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
