package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chirp/internal/notify"
	"chirp/internal/repository"
	"chirp/internal/service"
	"chirp/internal/storage"
)

const testCookie = "chirp_session"

type testEnv struct {
	router   *gin.Engine
	posts    *repository.MemoryPostRepository
	users    *repository.MemoryUserRepository
	sessions *repository.MemorySessionRepository
	userSvc  *service.UserService
	postSvc  *service.PostService
	sinkDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	users := repository.NewMemoryUserRepository()
	sessions := repository.NewMemorySessionRepository()
	posts := repository.NewMemoryPostRepository()
	cache := service.NewMemorySessionCache()
	signer := service.NewTokenSigner("test-secret")

	dir := t.TempDir()
	sink, err := storage.NewLocalSink(dir, "/attachments")
	if err != nil {
		t.Fatalf("sink: %v", err)
	}

	userSvc := service.NewUserService(logger, users)
	sessionSvc := service.NewSessionService(logger, userSvc, sessions, cache, signer, time.Hour)
	resolver := service.NewSessionResolver(logger, signer, sessions, users, cache)
	limiter := service.NewPostRateLimiter(service.DefaultPostRateLimit, service.DefaultPostRateWindow)
	postSvc := service.NewPostService(logger, posts, users, limiter, sink, notify.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := NewRouter(ctx, logger, RouterOptions{
		CookieName:    testCookie,
		AttachmentURL: "/attachments",
		AttachmentDir: dir,
	}, resolver,
		NewAuthHandler(logger, userSvc, sessionSvc, CookieConfig{Name: testCookie, TTL: time.Hour}),
		NewPostHandler(logger, postSvc),
	)

	return &testEnv{
		router:   router,
		posts:    posts,
		users:    users,
		sessions: sessions,
		userSvc:  userSvc,
		postSvc:  postSvc,
		sinkDir:  dir,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) doMultipart(t *testing.T, path, token, message, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", message); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if filename != "" {
		part, err := w.CreateFormFile("attachment", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

// signUp registra y loguea un usuario y devuelve su credencial.
func (e *testEnv) signUp(t *testing.T, handle string) string {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/users", "", map[string]string{
		"handle":   handle,
		"email":    handle + "@example.com",
		"password": "s3cretpass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", handle, rec.Code, rec.Body.String())
	}
	rec = e.doJSON(t, http.MethodPost, "/sessions", "", map[string]string{
		"handle":   handle,
		"password": "s3cretpass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", handle, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
