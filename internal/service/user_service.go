package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chirp/internal/domain"
	"chirp/internal/repository"
)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	cost   int
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
		cost:   bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Handle   string
	Email    string
	Password string
}

const minPasswordLength = 8

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	handle := normalizeHandle(input.Handle)
	emailAddr := normalizeEmail(input.Email)
	password := input.Password

	verr := &ValidationError{}
	if !handlePattern.MatchString(handle) {
		verr.Add("handle", "must be 3 to 30 characters of a-z, 0-9 or _")
	}
	if _, err := mail.ParseAddress(emailAddr); emailAddr == "" || err != nil {
		verr.Add("email", "is invalid")
	}
	if len(password) < minPasswordLength {
		verr.Add("password", "is too short (minimum is 8 characters)")
	}
	if !verr.Empty() {
		return domain.User{}, verr
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Handle:       handle,
		Email:        emailAddr,
		PasswordHash: string(hashBytes),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("handle", user.Handle))
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, handle, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	handle = normalizeHandle(handle)
	if handle == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByHandle(ctx context.Context, handle string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByHandle(ctx, normalizeHandle(handle))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
