package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/contextkeys"
	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/internal/middleware"
	"github.com/BatmanBruc/file-share-bot/internal/utils"
)

const (
	callbackAdClicked = "ad_clicked_"
	callbackGetFile   = "get_file_"
	callbackAbout     = "about"
	callbackClose     = "close"
)

// Callback is a decoded inline button payload.
type Callback interface {
	isCallback()
}

type AdClicked struct{ Param string }
type GetFile struct{ Param string }
type About struct{}
type Close struct{}
type Unknown struct{ Data string }

func (AdClicked) isCallback() {}
func (GetFile) isCallback()   {}
func (About) isCallback()     {}
func (Close) isCallback()     {}
func (Unknown) isCallback()   {}

func ParseCallback(data string) Callback {
	switch {
	case strings.HasPrefix(data, callbackAdClicked) && len(data) > len(callbackAdClicked):
		return AdClicked{Param: strings.TrimPrefix(data, callbackAdClicked)}
	case strings.HasPrefix(data, callbackGetFile) && len(data) > len(callbackGetFile):
		return GetFile{Param: strings.TrimPrefix(data, callbackGetFile)}
	case data == callbackAbout:
		return About{}
	case data == callbackClose:
		return Close{}
	}
	return Unknown{Data: data}
}

// HandleClickButton answers every callback query exactly once.
func (bh *Handlers) HandleClickButton(ctx context.Context, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	userID := cq.From.ID
	chatID := middleware.ChatIDOf(cq.Message)
	if chatID == 0 {
		chatID = userID
	}
	messageID := middleware.MessageIDOf(cq.Message)

	if bh.isBanned(ctx, userID) {
		bh.answerCallback(ctx, cq.ID, messages.BannedAlert(), true)
		return
	}

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = cq.Data
	}

	switch c := ParseCallback(data).(type) {
	case AdClicked:
		bh.onAdClicked(ctx, cq.ID, chatID, messageID, userID, c.Param)
	case GetFile:
		bh.answerCallback(ctx, cq.ID, messages.GetFileAlert(), false)
		bh.deleteMessage(ctx, chatID, messageID)
		from := cq.From
		bh.handleStart(ctx, chatID, &from, c.Param)
	case About:
		bh.answerCallback(ctx, cq.ID, "", false)
		bh.editText(ctx, chatID, messageID, messages.About(), utils.BuildInlineKeyboard(1, utils.CallbackButton("🔒 Close", callbackClose)))
	case Close:
		bh.answerCallback(ctx, cq.ID, "", false)
		bh.deleteMessage(ctx, chatID, messageID)
	default:
		bh.answerCallback(ctx, cq.ID, "", false)
	}
}

func (bh *Handlers) onAdClicked(ctx context.Context, callbackID string, chatID int64, messageID int, userID int64, param string) {
	if bh.Ads == nil {
		bh.answerCallback(ctx, callbackID, messages.AdVerifyErrorAlert(), true)
		return
	}
	if !bh.Ads.CheckPendingClick(ctx, userID, param) {
		bh.editText(ctx, chatID, messageID, messages.AdVerificationFailed(), bh.adKeyboard(userID, param))
		bh.answerCallback(ctx, callbackID, messages.AdNotClickedAlert(), true)
		return
	}
	if _, err := bh.Ads.ConfirmVerified(ctx, userID); err != nil {
		bh.log.Warn("confirm ad verification", zap.Int64("user_id", userID), zap.Error(err))
		bh.answerCallback(ctx, callbackID, messages.AdVerifyErrorAlert(), true)
		return
	}

	getFile := utils.CallbackButton("🔄 Get your file now", callbackGetFile+param)
	if len(getFile.CallbackData) > callbackDataLimit {
		getFile = utils.URLButton("🔄 Get your file now", bh.deepLink(param))
	}
	bh.editText(ctx, chatID, messageID, messages.AdVerified(), utils.BuildInlineKeyboard(1, getFile))
	bh.answerCallback(ctx, callbackID, messages.AdVerifiedAlert(), false)
}

func (bh *Handlers) editText(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) {
	if messageID == 0 {
		return
	}
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := bh.API.EditMessageText(ctx, params); err != nil {
		bh.log.Debug("edit message", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}
