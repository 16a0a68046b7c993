package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Level = "loud"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Format = "xml"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Output = "file"
	bad.File.Filename = ""
	assert.Error(t, bad.Validate())
}

func TestNewWritesToFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.File.Filename = filepath.Join(t.TempDir(), "nested", "bot.log")

	log, err := New(cfg)
	require.NoError(t, err)
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.File.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
