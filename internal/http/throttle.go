package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientThrottle mantiene un token bucket por IP de cliente.
type clientThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newClientThrottle(rps float64, burst int) *clientThrottle {
	if burst <= 0 {
		burst = 1
	}
	return &clientThrottle{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (t *clientThrottle) limiter(key string) *rate.Limiter {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if ent, ok := t.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(t.rps, t.burst)
	t.entries[key] = &throttleEntry{lim: lim, lastSeen: now}
	return lim
}

func (t *clientThrottle) cleanup() {
	cutoff := time.Now().Add(-t.idleTTL)
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, k)
		}
	}
}

// startJanitor limpia clientes inactivos hasta que ctx se cancele.
func (t *clientThrottle) startJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.cleanup()
			}
		}
	}()
}

// middleware rechaza con 429 a los clientes que superan su cuota de requests.
// Es independiente del límite de posts por usuario.
func (t *clientThrottle) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"kind": "throttled", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
