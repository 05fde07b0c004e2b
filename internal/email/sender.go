package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para los avisos por correo de posts publicados.
type Sender interface {
	SendPostPublished(ctx context.Context, toEmail string, notice PostNotice) error
}

// PostNotice es el contenido del aviso de publicación.
type PostNotice struct {
	Handle        string
	Message       string
	AttachmentRef string
	PublishedAt   time.Time
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendPostPublished(_ context.Context, _ string, _ PostNotice) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
