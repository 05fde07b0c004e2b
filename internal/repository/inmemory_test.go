package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"chirp/internal/domain"
)

func TestMemoryPostRepository_ListOrdering(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	posts := []domain.Post{
		{ID: "b", UserID: "u1", Message: "tie b", CreatedAt: base},
		{ID: "a", UserID: "u1", Message: "tie a", CreatedAt: base},
		{ID: "c", UserID: "u2", Message: "newest", CreatedAt: base.Add(time.Minute)},
		{ID: "d", UserID: "u1", Message: "oldest", CreatedAt: base.Add(-time.Minute)},
	}
	for _, p := range posts {
		p := p
		if err := repo.WithUserLock(ctx, p.UserID, func(w PostWriter) error {
			return w.Insert(ctx, p)
		}); err != nil {
			t.Fatalf("insert %s: %v", p.ID, err)
		}
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	want := []string{"c", "b", "a", "d"}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}

	mine, err := repo.ListByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	wantMine := []string{"d", "a", "b"}
	if len(mine) != len(wantMine) {
		t.Fatalf("expected %d posts, got %d", len(wantMine), len(mine))
	}
	for i, id := range wantMine {
		if mine[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, mine[i].ID)
		}
	}
}

func TestMemoryPostRepository_WithUserLockRollsBack(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithUserLock(ctx, "u1", func(w PostWriter) error {
		if err := w.Insert(ctx, domain.Post{ID: "p1", UserID: "u1", CreatedAt: time.Now()}); err != nil {
			return err
		}
		n, err := w.CountSince(ctx, "u1", time.Now().Add(-time.Hour))
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("expected pending insert to be counted, got %d", n)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "p1"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected rolled back post to be absent, got %v", err)
	}
}

func TestMemoryPostRepository_WithUserLockSerializes(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()

	var (
		mu     sync.Mutex
		inside int
		maxIn  int
		wg     sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.WithUserLock(ctx, "u1", func(_ PostWriter) error {
				mu.Lock()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxIn != 1 {
		t.Fatalf("expected at most one caller inside the lock, saw %d", maxIn)
	}
}

func TestMemoryPostRepository_DeleteOwned(t *testing.T) {
	repo := NewMemoryPostRepository()
	ctx := context.Background()
	post := domain.Post{ID: "p1", UserID: "owner", Message: "hola", CreatedAt: time.Now()}
	_ = repo.WithUserLock(ctx, post.UserID, func(w PostWriter) error { return w.Insert(ctx, post) })

	ok, err := repo.DeleteOwned(ctx, "p1", "intruder")
	if err != nil || ok {
		t.Fatalf("expected no delete for other user, got %v,%v", ok, err)
	}
	ok, err = repo.DeleteOwned(ctx, "p1", "owner")
	if err != nil || !ok {
		t.Fatalf("expected owner delete, got %v,%v", ok, err)
	}
	ok, _ = repo.DeleteOwned(ctx, "p1", "owner")
	if ok {
		t.Fatalf("expected second delete to report false")
	}
}

func TestMemoryUserRepository_Duplicates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, domain.User{ID: "1", Handle: "ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, domain.User{ID: "2", Handle: "ana", Email: "other@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for handle, got %v", err)
	}
	if err := repo.Create(ctx, domain.User{ID: "3", Handle: "bea", Email: "ana@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for email, got %v", err)
	}
	got, err := repo.GetByHandle(ctx, "ana")
	if err != nil || got.ID != "1" {
		t.Fatalf("expected ana, got %+v,%v", got, err)
	}
}
