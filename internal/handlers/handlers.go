package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/adverify"
	"github.com/BatmanBruc/file-share-bot/internal/config"
	"github.com/BatmanBruc/file-share-bot/internal/contextkeys"
	"github.com/BatmanBruc/file-share-bot/internal/linkcodec"
	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/internal/subscription"
	"github.com/BatmanBruc/file-share-bot/types"
)

// TelegramAPI is the subset of *bot.Bot the dispatcher calls.
type TelegramAPI interface {
	subscription.ChatAPI
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	CopyMessage(ctx context.Context, params *bot.CopyMessageParams) (*models.MessageID, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) types.Settings
	Invalidate()
}

// SettingsNotifier announces settings edits to other instances.
type SettingsNotifier interface {
	PublishSettingsChanged(ctx context.Context) error
}

type DeletionScheduler interface {
	Schedule(ctx context.Context, d *types.ScheduledDeletion) error
}

type BackgroundRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error) error
}

type Deps struct {
	API        TelegramAPI
	Files      types.FileStore
	Users      types.UserStore
	Ads        *adverify.Engine
	Gate       *subscription.Gate
	Settings   SettingsProvider
	Deletions  DeletionScheduler
	Pending    PendingCounter
	Background BackgroundRunner
	Notifier   SettingsNotifier
	Log        *zap.Logger
}

type Options struct {
	BotUsername string
	AppURL      string
	ChannelID   int64
	Admins      []int64
	Texts       config.Texts
}

type Handlers struct {
	Deps
	codec     linkcodec.Codec
	opts      Options
	admins    map[int64]struct{}
	log       *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	startedAt time.Time
}

func NewHandlers(deps Deps, opts Options) *Handlers {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	admins := make(map[int64]struct{}, len(opts.Admins))
	for _, id := range opts.Admins {
		admins[id] = struct{}{}
	}
	if opts.Texts.UserReply == "" {
		opts.Texts.UserReply = config.DefaultUserReply
	}
	if opts.Texts.BotStats == "" {
		opts.Texts.BotStats = config.DefaultBotStats
	}
	if opts.Texts.ForceSubMessage == "" {
		opts.Texts.ForceSubMessage = config.DefaultForceSubMessage
	}
	return &Handlers{
		Deps:      deps,
		codec:     linkcodec.New(opts.ChannelID),
		opts:      opts,
		admins:    admins,
		log:       log.Named("dispatcher"),
		now:       time.Now,
		sleep:     sleepCtx,
		startedAt: time.Now(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MainHandler is the single entry point for updates from polling and from
// the webhook. It never fails; problems are logged.
func (bh *Handlers) MainHandler(ctx context.Context, update *models.Update) {
	switch {
	case update.Message != nil:
		bh.handleMessage(ctx, update)
	case update.CallbackQuery != nil:
		bh.HandleClickButton(ctx, update)
	}
}

func (bh *Handlers) handleMessage(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg.From == nil || msg.Chat.Type != models.ChatTypePrivate {
		return
	}
	userID := msg.From.ID
	if bh.isBanned(ctx, userID) {
		bh.send(ctx, msg.Chat.ID, messages.Banned(), nil)
		return
	}

	messageType, ok := contextkeys.GetMessageType(ctx)
	if !ok && strings.HasPrefix(msg.Text, "/") {
		messageType = contextkeys.MessageTypeCommand
	}
	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, update)
	case contextkeys.MessageTypeDocument, contextkeys.MessageTypePhoto, contextkeys.MessageTypeVideo,
		contextkeys.MessageTypeAudio, contextkeys.MessageTypeVoice, contextkeys.MessageTypeVideoNote:
		if bh.isAdmin(userID) {
			bh.HandleFile(ctx, update)
			return
		}
		bh.HandleText(ctx, update)
	default:
		bh.HandleText(ctx, update)
	}
}

func (bh *Handlers) isAdmin(userID int64) bool {
	_, ok := bh.admins[userID]
	return ok
}

// isBanned fails open: a lookup error lets the user through.
func (bh *Handlers) isBanned(ctx context.Context, userID int64) bool {
	banned, err := bh.Users.IsBanned(ctx, userID)
	if err != nil {
		bh.log.Warn("ban lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return banned
}

func (bh *Handlers) settings(ctx context.Context) types.Settings {
	return bh.Settings.Get(ctx)
}

// send posts an HTML message from the bot. Bot-authored messages follow the
// protect-content setting.
func (bh *Handlers) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) *models.Message {
	params := &bot.SendMessageParams{
		ChatID:         chatID,
		Text:           text,
		ParseMode:      messages.ParseModeHTML,
		ProtectContent: bh.settings(ctx).ProtectContent,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	msg, err := bh.API.SendMessage(ctx, params)
	if err != nil {
		bh.log.Warn("send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil
	}
	return msg
}

func (bh *Handlers) deleteMessage(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := bh.API.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		bh.log.Debug("delete message", zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
	}
}

func (bh *Handlers) answerCallback(ctx context.Context, callbackID, text string, alert bool) {
	if _, err := bh.API.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	}); err != nil {
		bh.log.Debug("answer callback", zap.Error(err))
	}
}

// bestEffort runs a side effect whose failure must not affect the caller.
// Without a background runner it runs inline.
func (bh *Handlers) bestEffort(ctx context.Context, name string, fn func(context.Context) error) {
	if bh.Background != nil {
		if err := bh.Background.Go(ctx, name, fn); err == nil {
			return
		}
	}
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		bh.log.Warn("best-effort task failed", zap.String("task", name), zap.Error(err))
	}
}

func (bh *Handlers) touchUser(ctx context.Context, u *models.User) {
	if u == nil {
		return
	}
	user := types.BotUser{
		UserID:     u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		LastActive: bh.now().UTC(),
	}
	bh.bestEffort(ctx, "touch user", func(ctx context.Context) error {
		return bh.Users.TouchUser(ctx, user)
	})
}

func (bh *Handlers) recordAccess(ctx context.Context, userID int64, messageID int) {
	access := types.FileAccess{UserID: userID, FileID: messageID, AccessedAt: bh.now().UTC()}
	bh.bestEffort(ctx, "record file access", func(ctx context.Context) error {
		return bh.Users.RecordFileAccess(ctx, access)
	})
}
