package domain

import "time"

// Snapshot is the authoritative full-canvas raster. ImageData is an opaque
// data URL; the server never decodes it.
type Snapshot struct {
	ImageData string    `json:"imageData"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is one entry of the bounded chat list.
type ChatMessage struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}
