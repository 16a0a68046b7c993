package contextkeys

import "context"

type messageTypeKey struct{}
type filesInfoKey struct{}
type requestIDKey struct{}
type callbackDataKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypePhoto       MessageType = "photo"
	MessageTypeVideo       MessageType = "video"
	MessageTypeDocument    MessageType = "document"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVoice       MessageType = "voice"
	MessageTypeSticker     MessageType = "sticker"
	MessageTypeLocation    MessageType = "location"
	MessageTypeContact     MessageType = "contact"
	MessageTypePoll        MessageType = "poll"
	MessageTypeUnknown     MessageType = "unknown"
	MessageTypeCommand     MessageType = "command"
	MessageTypeVideoNote   MessageType = "video_note"
	MessageTypeClickButton MessageType = "click_button"
)

type FileInfo struct {
	FileType MessageType `json:"file_type"`
	FileID   string      `json:"file_id"`
	FileSize int64       `json:"file_size,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	Duration int         `json:"duration,omitempty"`
	Width    int         `json:"width,omitempty"`
	Height   int         `json:"height,omitempty"`
}

type FilesInfo struct {
	TotalFiles int        `json:"total_files"`
	Files      []FileInfo `json:"files"`
	HasFiles   bool       `json:"has_files"`
}

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v := ctx.Value(messageTypeKey{})
	if v == nil {
		return MessageTypeUnknown, false
	}
	return v.(MessageType), true
}

func WithFilesInfo(ctx context.Context, info *FilesInfo) context.Context {
	return context.WithValue(ctx, filesInfoKey{}, info)
}

func GetFilesInfo(ctx context.Context) (*FilesInfo, bool) {
	v := ctx.Value(filesInfoKey{})
	if v == nil {
		return nil, false
	}
	return v.(*FilesInfo), true
}

func HasFiles(ctx context.Context) bool {
	info, ok := GetFilesInfo(ctx)
	return ok && info != nil && info.HasFiles
}

// PrimaryFile returns the first analyzed attachment.
func PrimaryFile(ctx context.Context) (FileInfo, bool) {
	info, ok := GetFilesInfo(ctx)
	if !ok || info == nil || len(info.Files) == 0 {
		return FileInfo{}, false
	}
	return info.Files[0], true
}

// WithRequestID tags everything done for one update or HTTP request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v := ctx.Value(callbackDataKey{})
	if v == nil {
		return "", false
	}
	return v.(string), true
}
