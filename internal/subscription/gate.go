package subscription

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ChatAPI is the part of the Telegram client the gate needs.
type ChatAPI interface {
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	GetChat(ctx context.Context, params *bot.GetChatParams) (*models.ChatFullInfo, error)
	CreateChatInviteLink(ctx context.Context, params *bot.CreateChatInviteLinkParams) (*models.ChatInviteLink, error)
}

type Result struct {
	Required   bool
	Subscribed bool
	ChannelURL string
}

// Allowed reports whether the user may continue.
func (r Result) Allowed() bool {
	return !r.Required || r.Subscribed
}

type Gate struct {
	api  ChatAPI
	log  *zap.Logger
	urls *lru.LRU[string, string]
}

const joinURLTTL = 10 * time.Minute

func NewGate(api ChatAPI, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		api:  api,
		log:  log.Named("subscription"),
		urls: lru.NewLRU[string, string](64, nil, joinURLTTL),
	}
}

// Check tests userID against channel. An empty channel means the gate is
// off. Lookup failures count as not subscribed.
func (g *Gate) Check(ctx context.Context, channel string, userID int64) Result {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return Result{Required: false, Subscribed: true}
	}

	res := Result{Required: true, Subscribed: g.isMember(ctx, channel, userID)}
	if !res.Subscribed {
		res.ChannelURL = g.JoinURL(ctx, channel)
	}
	return res
}

func (g *Gate) isMember(ctx context.Context, channel string, userID int64) bool {
	member, err := g.api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: ChatID(channel),
		UserID: userID,
	})
	if err != nil {
		g.log.Warn("get chat member", zap.String("channel", channel), zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator, models.ChatMemberTypeMember:
		return true
	}
	return false
}

// JoinURL resolves a link users can follow to join channel: the public
// username, then the chat's invite link, then a freshly created one. When
// every lookup fails it falls back to a t.me link built from the id.
func (g *Gate) JoinURL(ctx context.Context, channel string) string {
	if url, ok := g.urls.Get(channel); ok {
		return url
	}

	url := ""
	chat, err := g.api.GetChat(ctx, &bot.GetChatParams{ChatID: ChatID(channel)})
	if err != nil {
		g.log.Warn("get chat", zap.String("channel", channel), zap.Error(err))
	} else if chat.Username != "" {
		url = "https://t.me/" + chat.Username
	} else if chat.InviteLink != "" {
		url = chat.InviteLink
	}

	if url == "" && err == nil {
		link, lerr := g.api.CreateChatInviteLink(ctx, &bot.CreateChatInviteLinkParams{ChatID: ChatID(channel)})
		if lerr != nil {
			g.log.Warn("create invite link", zap.String("channel", channel), zap.Error(lerr))
		} else if link.InviteLink != "" {
			url = link.InviteLink
		}
	}

	if url == "" {
		return fallbackURL(channel)
	}
	g.urls.Add(channel, url)
	return url
}

func fallbackURL(channel string) string {
	if strings.HasPrefix(channel, "@") {
		return "https://t.me/" + strings.TrimPrefix(channel, "@")
	}
	return "https://t.me/" + strings.Replace(channel, "-100", "", 1)
}

// ChatID converts a configured channel into a Bot API chat id: numeric ids
// become int64, anything else (an @username) is passed as is.
func ChatID(channel string) any {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return id
	}
	return channel
}
