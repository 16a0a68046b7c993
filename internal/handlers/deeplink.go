package handlers

import (
	"context"
	"net/url"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/linkcodec"
	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/internal/metrics"
	"github.com/BatmanBruc/file-share-bot/internal/utils"
	"github.com/BatmanBruc/file-share-bot/types"
)

const (
	// MaxBatchItems caps how many messages one batch link delivers.
	MaxBatchItems = 10

	callbackDataLimit = 64
)

// handleStart serves /start with or without a deep-link parameter.
func (bh *Handlers) handleStart(ctx context.Context, chatID int64, from *models.User, param string) {
	if param == "" {
		s := bh.settings(ctx)
		bh.send(ctx, chatID, messages.RenderUser(s.StartMessage, from), nil)
		return
	}

	processing := bh.send(ctx, chatID, messages.Processing(), nil)
	if processing != nil {
		defer bh.deleteMessage(ctx, chatID, processing.ID)
	}

	if !bh.checkSubscription(ctx, chatID, from, param) {
		return
	}
	bh.resolve(ctx, chatID, from, param)
}

// checkSubscription sends the join prompt and reports false when the user
// still has to join the required channel.
func (bh *Handlers) checkSubscription(ctx context.Context, chatID int64, from *models.User, param string) bool {
	channel := bh.settings(ctx).SubscriptionChannel()
	if channel == "" || bh.Gate == nil {
		return true
	}
	res := bh.Gate.Check(ctx, channel, from.ID)
	if res.Allowed() {
		return true
	}

	buttons := []utils.Button{utils.URLButton("Join Channel", res.ChannelURL)}
	if param != "" && bh.opts.BotUsername != "" {
		buttons = append(buttons, utils.URLButton("Try Again", bh.deepLink(param)))
	}
	bh.send(ctx, chatID, messages.RenderUser(bh.opts.Texts.ForceSubMessage, from), utils.BuildInlineKeyboard(1, buttons...))
	return false
}

func (bh *Handlers) resolve(ctx context.Context, chatID int64, from *models.User, param string) {
	parsed, err := bh.codec.Parse(param)
	if err != nil {
		bh.log.Debug("invalid start parameter", zap.String("param", param), zap.Error(err))
		bh.send(ctx, chatID, messages.InvalidLink(), nil)
		return
	}

	if confirm, ok := parsed.(linkcodec.AdConfirm); ok {
		bh.confirmAd(ctx, chatID, from, confirm.Inner)
		return
	}

	if bh.adGate(ctx, chatID, from.ID, param) {
		return
	}
	bh.deliver(ctx, chatID, from, parsed)
}

func (bh *Handlers) deliver(ctx context.Context, chatID int64, from *models.User, parsed linkcodec.Param) {
	switch p := parsed.(type) {
	case linkcodec.Batch:
		bh.deliverBatch(ctx, chatID, from, p)
	case linkcodec.Single:
		bh.deliverSingle(ctx, chatID, from, p.MessageID)
	default:
		bh.send(ctx, chatID, messages.InvalidLink(), nil)
	}
}

func (bh *Handlers) adsEnabled(s types.Settings) bool {
	return s.AdEnabled && s.AdLink != "" && bh.Ads != nil
}

// adGate shows the ad prompt when the user owes an ad view. It reports true
// when delivery must wait for the ad.
func (bh *Handlers) adGate(ctx context.Context, chatID, userID int64, param string) bool {
	s := bh.settings(ctx)
	if !bh.adsEnabled(s) {
		return false
	}

	bh.bestEffort(ctx, "record ad heartbeat", func(ctx context.Context) error {
		return bh.Ads.RecordFileAccess(ctx, userID)
	})

	if bh.Ads.HasRecentVerification(ctx, userID) || !bh.Ads.ShouldShowAd(ctx, userID) {
		return false
	}
	if err := bh.Ads.BeginAttempt(ctx, userID, param); err != nil {
		bh.log.Warn("begin ad attempt failed, delivering without ad", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	bh.send(ctx, chatID, messages.AdPrompt(), bh.adKeyboard(userID, param))
	return true
}

// adKeyboard offers the tracked ad link and a verify button. When the
// callback payload would not fit Telegram's limit the verify button becomes
// an ad-confirm deep link.
func (bh *Handlers) adKeyboard(userID int64, param string) models.InlineKeyboardMarkup {
	verify := utils.CallbackButton("✅ I've clicked the ad, verify now", callbackAdClicked+param)
	if len(verify.CallbackData) > callbackDataLimit {
		verify = utils.URLButton(verify.Text, bh.deepLink(linkcodec.AdConfirmParam(param)))
	}
	return utils.BuildInlineKeyboard(1,
		utils.URLButton("📢 Click here to support us", bh.redirectURL(userID, param)),
		verify,
	)
}

func (bh *Handlers) deepLink(param string) string {
	return linkcodec.DeepLink(bh.opts.BotUsername, param)
}

// redirectURL points at the click tracker which forwards to the ad.
func (bh *Handlers) redirectURL(userID int64, param string) string {
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("fileParam", param)
	return bh.opts.AppURL + "/api/redirect?" + q.Encode()
}

// confirmAd handles an ad-confirm link: verify the click, make the user
// wait, then replay the wrapped parameter.
func (bh *Handlers) confirmAd(ctx context.Context, chatID int64, from *models.User, inner string) {
	userID := from.ID
	innerParsed, err := bh.codec.Parse(inner)
	if err != nil {
		bh.send(ctx, chatID, messages.InvalidLink(), nil)
		return
	}
	if _, nested := innerParsed.(linkcodec.AdConfirm); nested {
		bh.send(ctx, chatID, messages.InvalidLink(), nil)
		return
	}

	if !bh.adsEnabled(bh.settings(ctx)) {
		bh.deliver(ctx, chatID, from, innerParsed)
		return
	}

	if !bh.Ads.CheckPendingClick(ctx, userID, inner) {
		bh.send(ctx, chatID, messages.AdNotClicked(), nil)
		return
	}
	if _, err := bh.Ads.ConfirmVerified(ctx, userID); err != nil {
		bh.log.Warn("confirm ad verification", zap.Int64("user_id", userID), zap.Error(err))
	}

	wait := bh.settings(ctx).AdWaitTime
	waitMsg := bh.send(ctx, chatID, messages.AdThanksWait(wait), nil)
	if err := bh.sleep(ctx, bh.settings(ctx).AdWait()); err != nil {
		return
	}
	if waitMsg != nil {
		bh.deleteMessage(ctx, chatID, waitMsg.ID)
	}
	bh.deliver(ctx, chatID, from, innerParsed)
}

func (bh *Handlers) copyFromChannel(ctx context.Context, chatID int64, messageID int, s types.Settings) (*models.MessageID, error) {
	params := &bot.CopyMessageParams{
		ChatID:         chatID,
		FromChatID:     bh.opts.ChannelID,
		MessageID:      messageID,
		ProtectContent: s.ProtectContent,
	}
	if s.CustomCaption != "" {
		params.Caption = messages.Multiline(s.CustomCaption)
		params.ParseMode = messages.ParseModeHTML
	}
	return bh.API.CopyMessage(ctx, params)
}

// deliverSingle copies one stored message to the user and, when auto-delete
// is on, announces and schedules its removal. Only a successful copy counts
// as a user access.
func (bh *Handlers) deliverSingle(ctx context.Context, chatID int64, from *models.User, messageID int) {
	userID := from.ID
	s := bh.settings(ctx)
	copied, err := bh.copyFromChannel(ctx, chatID, messageID, s)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		bh.log.Warn("copy message", zap.Int("message_id", messageID), zap.Int64("user_id", userID), zap.Error(err))
		bh.send(ctx, chatID, messages.FileUnavailable(), nil)
		return
	}
	metrics.DeliveriesTotal.WithLabelValues("single").Inc()
	bh.touchUser(ctx, from)
	bh.recordAccess(ctx, userID, messageID)

	ttl := s.AutoDelete()
	if ttl <= 0 {
		return
	}
	deletion := &types.ScheduledDeletion{
		FileID:    strconv.Itoa(messageID),
		ChatID:    chatID,
		MessageID: copied.ID,
		DeleteAt:  bh.now().Add(ttl).UTC(),
		CreatedAt: bh.now().UTC(),
	}
	if notice := bh.send(ctx, chatID, messages.AutoDeleteNotice(s.AutoDeleteMessage, s.AutoDeleteTime), nil); notice != nil {
		deletion.NotificationMessageID = notice.ID
	}
	if bh.Deletions == nil {
		return
	}
	if err := bh.Deletions.Schedule(ctx, deletion); err != nil {
		bh.log.Error("schedule deletion", zap.Int64("chat_id", chatID), zap.Int("message_id", copied.ID), zap.Error(err))
	}
}

// deliverBatch copies at most MaxBatchItems messages of the range, lowest
// id first. Batch items are not auto-deleted. A batch with at least one
// copied message counts as one user access.
func (bh *Handlers) deliverBatch(ctx context.Context, chatID int64, from *models.User, b linkcodec.Batch) {
	userID := from.ID
	first, last := b.First, b.Last
	if first > last {
		first, last = last, first
	}
	requested := last - first + 1
	end := first + min(last-first, MaxBatchItems-1)
	shown := end - first + 1

	progress := bh.send(ctx, chatID, messages.BatchProcessing(first, end), nil)

	s := bh.settings(ctx)
	sent := 0
	for id := first; id <= end; id++ {
		if ctx.Err() != nil {
			break
		}
		if _, err := bh.copyFromChannel(ctx, chatID, id, s); err != nil {
			bh.log.Debug("batch copy", zap.Int("message_id", id), zap.Error(err))
			continue
		}
		sent++
		bh.recordAccess(ctx, userID, id)
	}
	metrics.DeliveriesTotal.WithLabelValues("batch").Add(float64(sent))
	if sent > 0 {
		bh.touchUser(ctx, from)
	}

	if progress != nil {
		bh.deleteMessage(ctx, chatID, progress.ID)
	}
	bh.send(ctx, chatID, messages.BatchComplete(sent, requested, shown), nil)
}
