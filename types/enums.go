package types

type AdStatus string

const (
	AdStatusNone     AdStatus = ""
	AdStatusPending  AdStatus = "pending"
	AdStatusClicked  AdStatus = "clicked"
	AdStatusVerified AdStatus = "verified"
)

type UploadMethod string

const (
	UploadMethodAdminPanel UploadMethod = "admin_panel"
	UploadMethodBot        UploadMethod = "telegram_bot"
)
