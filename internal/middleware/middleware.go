package middleware

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/contextkeys"
	"github.com/BatmanBruc/file-share-bot/internal/metrics"
)

// HandlerFunc handles one update. Unlike bot.HandlerFunc it does not carry
// the client, so the same chain serves polling and webhook delivery.
type HandlerFunc func(ctx context.Context, update *models.Update)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that mws[0] runs first.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Adapt plugs a chain into the bot client's handler registry.
func Adapt(h HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		h(ctx, update)
	}
}

func Recover(log *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, update *models.Update) {
			defer func() {
				if p := recover(); p != nil {
					log.Error("handler panicked",
						zap.Int64("update_id", update.ID),
						zap.String("request_id", contextkeys.GetRequestID(ctx)),
						zap.Any("panic", p),
						zap.ByteString("stack", debug.Stack()),
					)
				}
			}()
			next(ctx, update)
		}
	}
}

// Logging tags the context with a request id and logs each update.
func Logging(log *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, update *models.Update) {
			reqID := contextkeys.GetRequestID(ctx)
			if reqID == "" {
				reqID = uuid.NewString()
				ctx = contextkeys.WithRequestID(ctx, reqID)
			}
			kind := UpdateKind(update)
			metrics.UpdatesTotal.WithLabelValues(kind).Inc()

			start := time.Now()
			next(ctx, update)

			log.Debug("update handled",
				zap.String("request_id", reqID),
				zap.Int64("update_id", update.ID),
				zap.String("kind", kind),
				zap.Int64("user_id", UserID(update)),
				zap.Duration("took", time.Since(start)),
			)
		}
	}
}

func UpdateKind(update *models.Update) string {
	switch {
	case update.Message != nil:
		return "message"
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.ChannelPost != nil:
		return "channel_post"
	case update.EditedMessage != nil:
		return "edited_message"
	default:
		return "other"
	}
}

// UserID returns the sender of a message or callback, or 0.
func UserID(update *models.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// ChatIDOf returns the chat of a possibly inaccessible callback message.
func ChatIDOf(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

// MessageIDOf returns the id of a possibly inaccessible callback message.
func MessageIDOf(m models.MaybeInaccessibleMessage) int {
	if m.Message != nil {
		return m.Message.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.MessageID
	}
	return 0
}

// AnalyzeMessage classifies the update and records any attachments in the
// context for the handlers.
func AnalyzeMessage() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, update *models.Update) {
			switch {
			case update.CallbackQuery != nil && update.CallbackQuery.Data != "":
				ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
				ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
			case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
				ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
			case update.Message != nil:
				ctx = contextkeys.WithMessageType(ctx, determineMessageType(update.Message))
				if info := analyzeFiles(update.Message); info.HasFiles {
					ctx = contextkeys.WithFilesInfo(ctx, info)
				}
			}
			next(ctx, update)
		}
	}
}

func determineMessageType(msg *models.Message) contextkeys.MessageType {
	switch {
	case len(msg.Photo) > 0:
		return contextkeys.MessageTypePhoto
	case msg.Video != nil:
		return contextkeys.MessageTypeVideo
	case msg.Document != nil:
		return contextkeys.MessageTypeDocument
	case msg.Audio != nil:
		return contextkeys.MessageTypeAudio
	case msg.Voice != nil:
		return contextkeys.MessageTypeVoice
	case msg.VideoNote != nil:
		return contextkeys.MessageTypeVideoNote
	case msg.Sticker != nil:
		return contextkeys.MessageTypeSticker
	case msg.Location != nil:
		return contextkeys.MessageTypeLocation
	case msg.Contact != nil:
		return contextkeys.MessageTypeContact
	case msg.Poll != nil:
		return contextkeys.MessageTypePoll
	case msg.Text != "" || msg.Caption != "":
		return contextkeys.MessageTypeText
	}
	return contextkeys.MessageTypeUnknown
}

// analyzeFiles describes the shareable attachments of msg. Stickers are
// not stored.
func analyzeFiles(msg *models.Message) *contextkeys.FilesInfo {
	files := make([]contextkeys.FileInfo, 0, 1)

	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypePhoto,
			FileID:   best.FileID,
			FileSize: int64(best.FileSize),
			MimeType: "image/jpeg",
			FileName: "Photo",
			Width:    best.Width,
			Height:   best.Height,
		})
	}
	if v := msg.Video; v != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeVideo,
			FileID:   v.FileID,
			FileSize: int64(v.FileSize),
			MimeType: v.MimeType,
			FileName: withExtension(v.FileName, "Video", v.MimeType, "mp4"),
			Duration: v.Duration,
			Width:    v.Width,
			Height:   v.Height,
		})
	}
	if d := msg.Document; d != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeDocument,
			FileID:   d.FileID,
			FileSize: int64(d.FileSize),
			MimeType: d.MimeType,
			FileName: withExtension(d.FileName, "Document", d.MimeType, ""),
		})
	}
	if a := msg.Audio; a != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeAudio,
			FileID:   a.FileID,
			FileSize: int64(a.FileSize),
			MimeType: a.MimeType,
			FileName: withExtension(a.FileName, "Audio", a.MimeType, "mp3"),
			Duration: a.Duration,
		})
	}
	if v := msg.Voice; v != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeVoice,
			FileID:   v.FileID,
			FileSize: int64(v.FileSize),
			MimeType: v.MimeType,
			FileName: "Voice." + extensionFromMimeType(v.MimeType, "ogg"),
			Duration: v.Duration,
		})
	}
	if v := msg.VideoNote; v != nil {
		files = append(files, contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeVideoNote,
			FileID:   v.FileID,
			FileSize: int64(v.FileSize),
			MimeType: "video/mp4",
			FileName: "Video note.mp4",
			Duration: v.Duration,
		})
	}

	return &contextkeys.FilesInfo{
		TotalFiles: len(files),
		Files:      files,
		HasFiles:   len(files) > 0,
	}
}

func withExtension(name, fallback, mimeType, defaultExt string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if strings.Contains(name, ".") {
		return name
	}
	if ext := extensionFromMimeType(mimeType, defaultExt); ext != "" {
		return name + "." + ext
	}
	return name
}

var mimeToExt = map[string]string{
	"jpeg":             "jpg",
	"png":              "png",
	"gif":              "gif",
	"webp":             "webp",
	"pdf":              "pdf",
	"zip":              "zip",
	"x-rar-compressed": "rar",
	"vnd.rar":          "rar",
	"x-7z-compressed":  "7z",
	"mp4":              "mp4",
	"x-matroska":       "mkv",
	"quicktime":        "mov",
	"webm":             "webm",
	"mpeg":             "mp3",
	"ogg":              "ogg",
	"x-wav":            "wav",
	"flac":             "flac",
	"x-m4a":            "m4a",
	"epub+zip":         "epub",
	"plain":            "txt",

	"vnd.android.package-archive":                                   "apk",
	"vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
}

func extensionFromMimeType(mimeType, defaultExt string) string {
	_, subtype, ok := strings.Cut(mimeType, "/")
	if !ok {
		return defaultExt
	}
	subtype, _, _ = strings.Cut(subtype, ";")
	subtype = strings.ToLower(strings.TrimSpace(subtype))
	if ext := mimeToExt[subtype]; ext != "" {
		return ext
	}
	if defaultExt != "" {
		return defaultExt
	}
	return subtype
}
