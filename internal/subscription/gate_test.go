package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
)

type fakeChatAPI struct {
	memberType   models.ChatMemberType
	memberErr    error
	chat         *models.ChatFullInfo
	chatErr      error
	invite       string
	inviteErr    error
	getChatCalls int
	createCalls  int
}

func (f *fakeChatAPI) GetChatMember(_ context.Context, _ *bot.GetChatMemberParams) (*models.ChatMember, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	return &models.ChatMember{Type: f.memberType}, nil
}

func (f *fakeChatAPI) GetChat(_ context.Context, _ *bot.GetChatParams) (*models.ChatFullInfo, error) {
	f.getChatCalls++
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chat, nil
}

func (f *fakeChatAPI) CreateChatInviteLink(_ context.Context, _ *bot.CreateChatInviteLinkParams) (*models.ChatInviteLink, error) {
	f.createCalls++
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return &models.ChatInviteLink{InviteLink: f.invite}, nil
}

func TestCheckDisabled(t *testing.T) {
	api := &fakeChatAPI{memberErr: errors.New("must not be called")}
	res := NewGate(api, nil).Check(context.Background(), "", 1)
	assert.False(t, res.Required)
	assert.True(t, res.Allowed())
}

func TestCheckMembership(t *testing.T) {
	cases := []struct {
		name       string
		memberType models.ChatMemberType
		err        error
		want       bool
	}{
		{"owner", models.ChatMemberTypeOwner, nil, true},
		{"admin", models.ChatMemberTypeAdministrator, nil, true},
		{"member", models.ChatMemberTypeMember, nil, true},
		{"left", models.ChatMemberTypeLeft, nil, false},
		{"banned", models.ChatMemberTypeBanned, nil, false},
		{"restricted", models.ChatMemberTypeRestricted, nil, false},
		{"error", "", errors.New("chat not found"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeChatAPI{memberType: tc.memberType, memberErr: tc.err, chat: &models.ChatFullInfo{Username: "chan"}}
			res := NewGate(api, nil).Check(context.Background(), "-100123", 42)
			assert.True(t, res.Required)
			assert.Equal(t, tc.want, res.Subscribed)
			assert.Equal(t, tc.want, res.Allowed())
			if !tc.want {
				assert.Equal(t, "https://t.me/chan", res.ChannelURL)
			}
		})
	}
}

func TestJoinURLPreference(t *testing.T) {
	ctx := context.Background()

	api := &fakeChatAPI{chat: &models.ChatFullInfo{InviteLink: "https://t.me/+abc"}}
	assert.Equal(t, "https://t.me/+abc", NewGate(api, nil).JoinURL(ctx, "-100123"))

	api = &fakeChatAPI{chat: &models.ChatFullInfo{}, invite: "https://t.me/+fresh"}
	assert.Equal(t, "https://t.me/+fresh", NewGate(api, nil).JoinURL(ctx, "-100123"))
	assert.Equal(t, 1, api.createCalls)

	api = &fakeChatAPI{chatErr: errors.New("forbidden")}
	assert.Equal(t, "https://t.me/123", NewGate(api, nil).JoinURL(ctx, "-100123"))
	assert.Equal(t, "https://t.me/mychan", NewGate(api, nil).JoinURL(ctx, "@mychan"))
}

func TestJoinURLCached(t *testing.T) {
	api := &fakeChatAPI{chat: &models.ChatFullInfo{Username: "chan"}}
	g := NewGate(api, nil)
	g.JoinURL(context.Background(), "-100123")
	g.JoinURL(context.Background(), "-100123")
	assert.Equal(t, 1, api.getChatCalls)
}

func TestChatID(t *testing.T) {
	assert.Equal(t, int64(-100123), ChatID("-100123"))
	assert.Equal(t, "@chan", ChatID("@chan"))
}
