package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	s, err := NewPostgresStore(context.Background(), "  ")
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "dsn is empty")
}
