package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chirp/internal/domain"
)

type stubResolver struct {
	viewer domain.Viewer
	err    error
	seen   []string
}

func (s *stubResolver) Resolve(_ context.Context, credential string) (domain.Viewer, error) {
	s.seen = append(s.seen, credential)
	return s.viewer, s.err
}

func newMiddlewareRouter(resolver ViewerResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/who", SessionMiddleware(zap.NewNop(), resolver, testCookie), func(c *gin.Context) {
		viewer := CurrentViewer(c)
		if !viewer.Authenticated {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, viewer.User.Handle)
	})
	return r
}

func TestSessionMiddleware_ReadsCookie(t *testing.T) {
	resolver := &stubResolver{viewer: domain.AuthenticatedAs(domain.User{ID: "u1", Handle: "alice"})}
	r := newMiddlewareRouter(resolver)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "cookie-cred"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "alice" {
		t.Fatalf("expected alice, got %d %q", rec.Code, rec.Body.String())
	}
	if len(resolver.seen) != 1 || resolver.seen[0] != "cookie-cred" {
		t.Fatalf("expected a single resolution of the cookie, got %v", resolver.seen)
	}
}

func TestSessionMiddleware_ReadsBearer(t *testing.T) {
	resolver := &stubResolver{viewer: domain.Anonymous()}
	r := newMiddlewareRouter(resolver)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer header-cred")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous, got %q", rec.Body.String())
	}
	if len(resolver.seen) != 1 || resolver.seen[0] != "header-cred" {
		t.Fatalf("expected bearer credential, got %v", resolver.seen)
	}
}

func TestSessionMiddleware_AnonymousWithoutCredential(t *testing.T) {
	resolver := &stubResolver{viewer: domain.Anonymous()}
	r := newMiddlewareRouter(resolver)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/who", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous 200, got %d %q", rec.Code, rec.Body.String())
	}
	if len(resolver.seen) != 1 || resolver.seen[0] != "" {
		t.Fatalf("expected empty credential, got %v", resolver.seen)
	}
}

func TestSessionMiddleware_InfraFailure(t *testing.T) {
	resolver := &stubResolver{err: errors.New("db down")}
	r := newMiddlewareRouter(resolver)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/who", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
