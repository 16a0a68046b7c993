package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/contextkeys"
	"github.com/BatmanBruc/file-share-bot/internal/formats"
	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/types"
)

// HandleFile stores an admin's attachment in the storage channel and replies
// with its share link. The channel copy is never content protected.
func (bh *Handlers) HandleFile(ctx context.Context, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	stored, err := bh.API.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     bh.opts.ChannelID,
		FromChatID: chatID,
		MessageID:  msg.ID,
	})
	if err != nil {
		bh.log.Error("copy to storage channel", zap.Int64("channel_id", bh.opts.ChannelID), zap.Error(err))
		bh.send(ctx, chatID, messages.ErrorDefault(), nil)
		return
	}

	record := &types.FileRecord{
		MessageID:    stored.ID,
		UploadedBy:   msg.From.ID,
		UploadMethod: types.UploadMethodBot,
		CreatedAt:    bh.now().UTC(),
	}
	if fi, ok := contextkeys.PrimaryFile(ctx); ok {
		record.Name = fi.FileName
		record.Size = fi.FileSize
		record.MimeType = fi.MimeType
		record.Tags = []string{string(formats.FromMessageType(fi))}
	}
	if err := bh.Files.CreateFile(ctx, record); err != nil {
		bh.log.Warn("save file record", zap.Int("message_id", stored.ID), zap.Error(err))
	}

	reply := bh.sendLink(ctx, chatID, bh.deepLink(bh.codec.FileParam(stored.ID)), "")
	if reply == nil {
		return
	}

	s := bh.settings(ctx)
	ttl := s.AutoDelete()
	if ttl <= 0 || bh.Deletions == nil {
		return
	}
	if err := bh.Deletions.Schedule(ctx, &types.ScheduledDeletion{
		FileID:    "link-" + strconv.Itoa(stored.ID),
		ChatID:    chatID,
		MessageID: reply.ID,
		DeleteAt:  bh.now().Add(ttl).UTC(),
		CreatedAt: bh.now().UTC(),
	}); err != nil {
		bh.log.Error("schedule link deletion", zap.Int("message_id", reply.ID), zap.Error(err))
	}
}
