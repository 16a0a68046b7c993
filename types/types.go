package types

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// FileRecord describes one file stored as a message in the storage channel.
// MessageID is the id of that channel copy and is the handle used by links.
type FileRecord struct {
	MessageID    int          `json:"message_id"`
	Name         string       `json:"name"`
	Size         int64        `json:"size"`
	MimeType     string       `json:"mime_type,omitempty"`
	UploadedBy   int64        `json:"uploaded_by"`
	UploadMethod UploadMethod `json:"upload_method"`
	CategoryID   string       `json:"category_id,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

type ScheduledDeletion struct {
	ID                    string    `json:"id"`
	FileID                string    `json:"file_id"`
	ChatID                int64     `json:"chat_id"`
	MessageID             int       `json:"message_id"`
	DeleteAt              time.Time `json:"delete_at"`
	NotificationMessageID int       `json:"notification_message_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}
