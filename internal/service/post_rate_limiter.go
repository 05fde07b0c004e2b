package service

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPostRateLimit  = 30
	DefaultPostRateWindow = time.Hour
)

// PostCounter cuenta los posts de un usuario con created_at estrictamente posterior a since.
type PostCounter interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// PostRateLimiter es la única fuente de verdad de la política: como mucho limit posts
// en la ventana móvil que termina en el instante de la request.
type PostRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewPostRateLimiter(limit int, window time.Duration) *PostRateLimiter {
	if limit <= 0 {
		limit = DefaultPostRateLimit
	}
	if window <= 0 {
		window = DefaultPostRateWindow
	}
	return &PostRateLimiter{
		limit:  limit,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Allow decide sin efectos secundarios si userID puede crear un post más.
func (l *PostRateLimiter) Allow(ctx context.Context, counter PostCounter, userID string) (bool, error) {
	count, err := counter.CountSince(ctx, userID, l.now().Add(-l.window))
	if err != nil {
		return false, err
	}
	return count < l.limit, nil
}

func (l *PostRateLimiter) Limit() int { return l.limit }

func (l *PostRateLimiter) Window() time.Duration { return l.window }

// Message es el texto fijo que ve el usuario al ser rechazado.
func (l *PostRateLimiter) Message() string {
	return fmt.Sprintf("Rate limit exceeded (%d posts/%s). Please try again later.", l.limit, windowLabel(l.window))
}

func windowLabel(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d == 24*time.Hour:
		return "day"
	case d == time.Minute:
		return "minute"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	default:
		return d.String()
	}
}
