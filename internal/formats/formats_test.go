package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BatmanBruc/file-share-bot/internal/contextkeys"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name, mime string
		want       Kind
	}{
		{"report.PDF", "", KindDocument},
		{"slides.pptx", "", KindPresentation},
		{"backup.tar", "", KindArchive},
		{"clip", "video/mp4", KindVideo},
		{"notes", "text/plain", KindDocument},
		{"blob.bin", "application/octet-stream", KindOther},
		{"", "", KindOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.name, c.mime), c.name)
	}
}

func TestFromMessageType(t *testing.T) {
	assert.Equal(t, KindImage, FromMessageType(contextkeys.FileInfo{FileType: contextkeys.MessageTypePhoto}))
	assert.Equal(t, KindAudio, FromMessageType(contextkeys.FileInfo{FileType: contextkeys.MessageTypeVoice}))
	assert.Equal(t, KindDocument, FromMessageType(contextkeys.FileInfo{
		FileType: contextkeys.MessageTypeDocument, FileName: "a.docx",
	}))
}
