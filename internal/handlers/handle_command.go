package handlers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/internal/utils"
	"github.com/BatmanBruc/file-share-bot/types"
)

// PendingCounter reports how many scheduled deletions are outstanding.
type PendingCounter interface {
	CountPendingDeletions(ctx context.Context) (int, error)
}

func parseCommand(text string) (cmd string, args []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", nil
	}
	cmd = strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:]
}

func (bh *Handlers) HandleCommand(ctx context.Context, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	cmd, args := parseCommand(msg.Text)

	if cmd == "start" {
		param := ""
		if len(args) > 0 {
			param = args[0]
		}
		bh.handleStart(ctx, chatID, msg.From, param)
		return
	}

	admin := bh.isAdmin(userID)
	switch cmd {
	case "stats", "genlink", "batch", "settings", "ban", "unban", "broadcast":
		if !admin {
			bh.send(ctx, chatID, messages.AdminOnly(), nil)
			return
		}
	default:
		bh.HandleText(ctx, update)
		return
	}

	switch cmd {
	case "stats":
		bh.cmdStats(ctx, chatID)
	case "genlink":
		bh.cmdGenlink(ctx, chatID, args)
	case "batch":
		bh.cmdBatch(ctx, chatID, args)
	case "settings":
		bh.cmdSettings(ctx, chatID, args)
	case "ban":
		bh.cmdBan(ctx, chatID, args)
	case "unban":
		bh.cmdUnban(ctx, chatID, args)
	case "broadcast":
		bh.send(ctx, chatID, messages.BroadcastHint(), nil)
	}
}

func (bh *Handlers) cmdStats(ctx context.Context, chatID int64) {
	files, err := bh.Files.CountFiles(ctx)
	if err != nil {
		bh.log.Warn("count files", zap.Error(err))
	}
	users, err := bh.Users.CountUsers(ctx)
	if err != nil {
		bh.log.Warn("count users", zap.Error(err))
	}
	pending := 0
	if bh.Pending != nil {
		if pending, err = bh.Pending.CountPendingDeletions(ctx); err != nil {
			bh.log.Warn("count pending deletions", zap.Error(err))
		}
	}
	uptime := messages.FormatDuration(int(bh.now().Sub(bh.startedAt) / time.Second))
	template := strings.ReplaceAll(bh.opts.Texts.BotStats, "{uptime}", uptime)
	bh.send(ctx, chatID, messages.Stats(template, files, users, pending), nil)
}

func (bh *Handlers) cmdGenlink(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		bh.send(ctx, chatID, messages.GenlinkUsage(), nil)
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		bh.send(ctx, chatID, messages.GenlinkUsage(), nil)
		return
	}
	bh.sendLink(ctx, chatID, bh.deepLink(bh.codec.FileParam(id)), "")
}

func (bh *Handlers) cmdBatch(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		bh.send(ctx, chatID, messages.BatchUsage(bh.opts.AppURL), nil)
		return
	}
	first, err1 := strconv.Atoi(args[0])
	last, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || first <= 0 || last <= 0 {
		bh.send(ctx, chatID, messages.BatchUsage(bh.opts.AppURL), nil)
		return
	}
	lo, hi := min(first, last), max(first, last)
	bh.sendLink(ctx, chatID, bh.deepLink(bh.codec.BatchParam(first, last)), messages.BatchLinks(hi-lo+1, lo, hi))
}

// sendLink replies with a share link and a share button.
func (bh *Handlers) sendLink(ctx context.Context, chatID int64, link, header string) *models.Message {
	text := messages.LinkReady(link)
	if header != "" {
		text = header + "\n\n" + text
	}
	share := "https://telegram.me/share/url?url=" + url.QueryEscape(link)
	return bh.send(ctx, chatID, text, utils.BuildInlineKeyboard(1, utils.URLButton("🔁 Share URL", share)))
}

func (bh *Handlers) cmdSettings(ctx context.Context, chatID int64, args []string) {
	if len(args) > 0 && strings.EqualFold(args[0], "reload") {
		bh.Settings.Invalidate()
		if bh.Notifier != nil {
			bh.bestEffort(ctx, "publish settings change", bh.Notifier.PublishSettingsChanged)
		}
		bh.send(ctx, chatID, messages.SettingsReloaded(), nil)
		return
	}
	s := bh.settings(ctx)
	bh.send(ctx, chatID, messages.SettingsSummary(s.ProtectContent, s.AutoDeleteTime, bh.adsEnabled(s), s.SubscriptionChannel()), nil)
}

func parseUserID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (bh *Handlers) cmdBan(ctx context.Context, chatID int64, args []string) {
	id, ok := parseUserID(args)
	if !ok {
		bh.send(ctx, chatID, messages.BanUsage("ban"), nil)
		return
	}
	ban := types.BannedUser{
		UserID:   id,
		BannedAt: bh.now().UTC(),
		Reason:   strings.Join(args[1:], " "),
	}
	if err := bh.Users.BanUser(ctx, ban); err != nil {
		bh.log.Error("ban user", zap.Int64("user_id", id), zap.Error(err))
		bh.send(ctx, chatID, messages.ErrorDefault(), nil)
		return
	}
	bh.send(ctx, chatID, messages.UserBanned(id), nil)
}

func (bh *Handlers) cmdUnban(ctx context.Context, chatID int64, args []string) {
	id, ok := parseUserID(args)
	if !ok {
		bh.send(ctx, chatID, messages.BanUsage("unban"), nil)
		return
	}
	was, err := bh.Users.UnbanUser(ctx, id)
	if err != nil {
		bh.log.Error("unban user", zap.Int64("user_id", id), zap.Error(err))
		bh.send(ctx, chatID, messages.ErrorDefault(), nil)
		return
	}
	bh.send(ctx, chatID, messages.UserUnbanned(id, was), nil)
}
