// Package notify despacha los efectos secundarios posteriores a la creación de un post.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chirp/internal/domain"
	"chirp/internal/email"
)

// Notifier recibe un aviso por cada post creado. No se reintenta.
type Notifier interface {
	PostCreated(ctx context.Context, event Event) error
}

// Event describe un post ya persistido.
type Event struct {
	PostID        string    `json:"post_id"`
	UserID        string    `json:"user_id"`
	Handle        string    `json:"handle"`
	Email         string    `json:"-"`
	Message       string    `json:"message"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEvent arma el evento a partir del post y su dueño.
func NewEvent(post domain.Post, owner domain.User) Event {
	return Event{
		PostID:        post.ID,
		UserID:        owner.ID,
		Handle:        owner.Handle,
		Email:         owner.Email,
		Message:       post.Message,
		AttachmentRef: post.AttachmentRef,
		CreatedAt:     post.CreatedAt,
	}
}

// EmailNotifier avisa por correo al autor del post.
type EmailNotifier struct {
	sender email.Sender
}

func NewEmailNotifier(sender email.Sender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) PostCreated(ctx context.Context, event Event) error {
	if n == nil || n.sender == nil {
		return nil
	}
	return n.sender.SendPostPublished(ctx, event.Email, email.PostNotice{
		Handle:        event.Handle,
		Message:       event.Message,
		AttachmentRef: event.AttachmentRef,
		PublishedAt:   event.CreatedAt,
	})
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publica el evento como JSON en un canal de Redis.
type RedisNotifier struct {
	client  redisPublisher
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "posts:created"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) PostCreated(ctx context.Context, event Event) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Multi reparte el evento a todos los notifiers y junta los errores.
type Multi []Notifier

func (m Multi) PostCreated(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.PostCreated(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// Nop descarta los eventos.
type Nop struct{}

func (Nop) PostCreated(context.Context, Event) error { return nil }
