package types

import "time"

type AdHistoryEntry struct {
	ViewTime     time.Time  `json:"view_time"`
	ClickTime    *time.Time `json:"click_time,omitempty"`
	VerifiedTime *time.Time `json:"verified_time,omitempty"`
	FileParam    string     `json:"file_param"`
}

// AdClickState is the per-user ad verification record.
// TotalViews always equals the number of History entries with VerifiedTime set.
type AdClickState struct {
	UserID         int64            `json:"user_id"`
	Status         AdStatus         `json:"status"`
	ClickAttempt   *time.Time       `json:"click_attempt,omitempty"`
	LastClickTime  *time.Time       `json:"last_click_time,omitempty"`
	LastViewTime   *time.Time       `json:"last_view_time,omitempty"`
	LastFileAccess *time.Time       `json:"last_file_access,omitempty"`
	TotalViews     int              `json:"total_views"`
	FileParam      string           `json:"file_param,omitempty"`
	History        []AdHistoryEntry `json:"ad_history,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// AdClickDetail is one conversion reported by the ad network.
type AdClickDetail struct {
	UserID         int64     `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	UserAgent      string    `json:"user_agent,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	Referrer       string    `json:"referrer,omitempty"`
	ConversionTime *int64    `json:"conversion_time,omitempty"`
	Platform       string    `json:"platform"`
	Device         string    `json:"device"`
	CreatedAt      time.Time `json:"created_at"`
}
