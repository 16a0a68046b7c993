package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInlineKeyboard(t *testing.T) {
	kb := BuildInlineKeyboard(2,
		URLButton("a", "https://a"),
		CallbackButton("b", "b"),
		CallbackButton("c", "c"),
	)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "https://a", kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "c", kb.InlineKeyboard[1][0].CallbackData)

	kb = BuildInlineKeyboard(0, CallbackButton("x", "x"), CallbackButton("y", "y"))
	assert.Len(t, kb.InlineKeyboard, 2)
}
