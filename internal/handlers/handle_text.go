package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/internal/utils"
)

// HandleText answers anything that is not a command or an admin upload.
func (bh *Handlers) HandleText(ctx context.Context, update *models.Update) {
	msg := update.Message
	keyboard := utils.BuildInlineKeyboard(2,
		utils.CallbackButton("ℹ️ About", callbackAbout),
		utils.CallbackButton("🔒 Close", callbackClose),
	)
	bh.send(ctx, msg.Chat.ID, messages.Multiline(bh.opts.Texts.UserReply), keyboard)
}
