package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirp/internal/domain"
	"chirp/internal/email"
)

type recordingSender struct {
	to     string
	notice email.PostNotice
	err    error
}

func (s *recordingSender) SendPostPublished(_ context.Context, to string, notice email.PostNotice) error {
	s.to = to
	s.notice = notice
	return s.err
}

type failingNotifier struct{ err error }

func (f failingNotifier) PostCreated(context.Context, Event) error { return f.err }

func sampleEvent() Event {
	post := domain.Post{ID: "p1", UserID: "u1", Message: "Test Message", AttachmentRef: "/attachments/p1/test.png", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	owner := domain.User{ID: "u1", Handle: "ana", Email: "ana@example.com"}
	return NewEvent(post, owner)
}

func TestEmailNotifier_SendsToOwner(t *testing.T) {
	sender := &recordingSender{}
	err := NewEmailNotifier(sender).PostCreated(context.Background(), sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sender.to)
	assert.Equal(t, "ana", sender.notice.Handle)
	assert.Equal(t, "Test Message", sender.notice.Message)
	assert.Equal(t, "/attachments/p1/test.png", sender.notice.AttachmentRef)
}

func TestRedisNotifier_Publishes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "posts:created")
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisNotifier(rdb, "").PostCreated(ctx, sampleEvent()))

	select {
	case msg := <-sub.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "p1", got["post_id"])
		assert.Equal(t, "ana", got["handle"])
		assert.NotContains(t, got, "Email")
	case <-time.After(time.Second):
		t.Fatal("expected published event")
	}
}

func TestRedisNotifier_NilClient(t *testing.T) {
	var n *RedisNotifier
	assert.NoError(t, n.PostCreated(context.Background(), sampleEvent()))
}

func TestMulti_JoinsErrorsAndCallsAll(t *testing.T) {
	sender := &recordingSender{}
	boom := errors.New("boom")
	m := Multi{failingNotifier{err: boom}, nil, NewEmailNotifier(sender), Nop{}}

	err := m.PostCreated(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ana@example.com", sender.to, "later notifiers still run")
}
