package domain

import "time"

const MaxPostLength = 140

type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	OwnerHandle   string    `json:"owner_handle"`
	Message       string    `json:"message"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasAttachment indica si el post referencia un archivo adjunto.
func (p Post) HasAttachment() bool {
	return p.AttachmentRef != ""
}
