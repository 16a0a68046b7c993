package types

import "time"

type BannedUser struct {
	UserID   int64     `json:"user_id"`
	BannedAt time.Time `json:"banned_at"`
	Reason   string    `json:"reason,omitempty"`
}

type BotUser struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	AccessCount int       `json:"access_count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastActive  time.Time `json:"last_active"`
}

type FileAccess struct {
	UserID     int64     `json:"user_id"`
	FileID     int       `json:"file_id"`
	AccessedAt time.Time `json:"accessed_at"`
}
