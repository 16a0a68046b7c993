package formats

import (
	"path"
	"strings"

	"github.com/BatmanBruc/file-share-bot/internal/contextkeys"
)

// Kind is the coarse media tag attached to ingested files.
type Kind string

const (
	KindImage        Kind = "image"
	KindAudio        Kind = "audio"
	KindVideo        Kind = "video"
	KindDocument     Kind = "document"
	KindPresentation Kind = "presentation"
	KindArchive      Kind = "archive"
	KindOther        Kind = "other"
)

var extensions = map[Kind][]string{
	KindImage:        {"png", "jpg", "jpeg", "jp2", "webp", "bmp", "tif", "tiff", "gif", "ico", "heic", "avif", "tgs", "psd", "svg", "apng", "eps"},
	KindAudio:        {"mp3", "ogg", "opus", "wav", "flac", "wma", "oga", "m4a", "aac", "aiff", "amr"},
	KindVideo:        {"mp4", "avi", "wmv", "mkv", "3gp", "3gpp", "mpg", "mpeg", "webm", "ts", "mov", "flv", "asf", "vob"},
	KindDocument:     {"xlsx", "xls", "txt", "rtf", "doc", "docx", "odt", "pdf", "ods", "epub", "csv"},
	KindPresentation: {"ppt", "pptx", "pptm", "pps", "ppsx", "ppsm", "pot", "potx", "potm", "odp"},
	KindArchive:      {"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "apk", "torrent"},
}

var byExt = func() map[string]Kind {
	m := make(map[string]Kind)
	for k, exts := range extensions {
		for _, e := range exts {
			m[e] = k
		}
	}
	return m
}()

func normalizeExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(name)), "."))
}

// Classify picks a Kind from the file name, then the MIME type.
func Classify(name, mimeType string) Kind {
	if k, ok := byExt[normalizeExt(name)]; ok {
		return k
	}
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "text/"), mimeType == "application/pdf":
		return KindDocument
	}
	return KindOther
}

// FromMessageType tags attachments that carry no name, like photos and voice notes.
func FromMessageType(fi contextkeys.FileInfo) Kind {
	switch fi.FileType {
	case contextkeys.MessageTypePhoto, contextkeys.MessageTypeSticker:
		return KindImage
	case contextkeys.MessageTypeAudio, contextkeys.MessageTypeVoice:
		return KindAudio
	case contextkeys.MessageTypeVideo, contextkeys.MessageTypeVideoNote:
		return KindVideo
	}
	return Classify(fi.FileName, fi.MimeType)
}
