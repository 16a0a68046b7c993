package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/BatmanBruc/file-share-bot/internal/logging"
	"github.com/BatmanBruc/file-share-bot/types"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	BotToken    string
	BotUsername string
	Mode        string
	HTTPAddr    string
	AppURL      string
	ChannelID   int64
	Admins      []int64

	WebhookSecret   string
	CronSecret      string
	AdWebhookSecret string
	// FallbackAdURL is the redirect target while no ad link is configured.
	FallbackAdURL string

	Storage     string
	PostgresDSN string
	Redis       RedisConfig

	SettingsTTL     time.Duration
	Reaper          ReaperConfig
	ShutdownTimeout time.Duration

	Log      logging.Config
	Defaults types.Settings
	Texts    Texts
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type ReaperConfig struct {
	Interval  time.Duration
	BatchSize int
	MaxRuns   int
}

// Texts are the fixed bot replies that can be overridden from env.
type Texts struct {
	UserReply       string
	BotStats        string
	ForceSubMessage string
}

const (
	DefaultAutoDeleteMessage = "This file will be automatically deleted in {time} seconds."
	DefaultAutoDelSuccessMsg = "Your file has been successfully deleted. Thank you for using our service. ✅"
	DefaultStartMessage      = "Hello {first}\\n\\nI can store private files in Specified Channel and other users can access it from special link."
	DefaultUserReply         = "I'm a file sharing bot!"
	DefaultBotStats          = "Bot Uptime: {uptime}"
	DefaultForceSubMessage   = "Hello {first}\\n\\nYou need to join in my Channel/Group to use me\\n\\nKindly Please join Channel"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("BOT_MODE", ModePolling)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_DB", "file_share_bot")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "file_share_bot")
	v.SetDefault("SETTINGS_TTL", 60*time.Second)
	v.SetDefault("REAPER_INTERVAL", time.Duration(0))
	v.SetDefault("REAPER_BATCH_SIZE", 10)
	v.SetDefault("REAPER_MAX_RUNS", 5)
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "console")
	v.SetDefault("LOG_FILE", "logs/bot.log")

	v.SetDefault("AUTO_DELETE_TIME", 0)
	v.SetDefault("AUTO_DELETE_MSG", DefaultAutoDeleteMessage)
	v.SetDefault("AUTO_DEL_SUCCESS_MSG", DefaultAutoDelSuccessMsg)
	v.SetDefault("START_MESSAGE", DefaultStartMessage)
	v.SetDefault("AD_WAIT_TIME", 10)
	v.SetDefault("AD_FALLBACK_URL", "https://example.com")
	v.SetDefault("USER_REPLY_TEXT", DefaultUserReply)
	v.SetDefault("BOT_STATS_TEXT", DefaultBotStats)
	v.SetDefault("FORCE_SUB_MESSAGE", DefaultForceSubMessage)
}

// Load reads configuration from the environment. Call LoadEnvFile first to
// pick up a local config.env.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	channelID, err := parseInt64(v.GetString("CHANNEL_ID"))
	if err != nil {
		return nil, fmt.Errorf("CHANNEL_ID: %w", err)
	}
	admins, err := parseIDs(v.GetString("ADMINS"))
	if err != nil {
		return nil, fmt.Errorf("ADMINS: %w", err)
	}
	if owner := strings.TrimSpace(v.GetString("OWNER_ID")); owner != "" {
		id, err := parseInt64(owner)
		if err != nil {
			return nil, fmt.Errorf("OWNER_ID: %w", err)
		}
		admins = append(admins, id)
	}

	forceSubChannel := strings.TrimSpace(v.GetString("FORCE_SUB_CHANNEL"))

	cfg := &Config{
		BotToken:        strings.TrimSpace(v.GetString("BOT_TOKEN")),
		BotUsername:     strings.TrimPrefix(strings.TrimSpace(v.GetString("BOT_USERNAME")), "@"),
		Mode:            strings.ToLower(strings.TrimSpace(v.GetString("BOT_MODE"))),
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		AppURL:          strings.TrimRight(strings.TrimSpace(v.GetString("APP_URL")), "/"),
		ChannelID:       channelID,
		Admins:          admins,
		WebhookSecret:   v.GetString("WEBHOOK_SECRET"),
		CronSecret:      v.GetString("CRON_SECRET"),
		AdWebhookSecret: v.GetString("AD_WEBHOOK_SECRET"),
		FallbackAdURL:   strings.TrimSpace(v.GetString("AD_FALLBACK_URL")),
		Storage:         strings.ToLower(strings.TrimSpace(v.GetString("STORAGE"))),
		PostgresDSN:     postgresDSN(v),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		SettingsTTL: v.GetDuration("SETTINGS_TTL"),
		Reaper: ReaperConfig{
			Interval:  v.GetDuration("REAPER_INTERVAL"),
			BatchSize: v.GetInt("REAPER_BATCH_SIZE"),
			MaxRuns:   v.GetInt("REAPER_MAX_RUNS"),
		},
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Log: logging.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
			File: logging.FileConfig{
				Filename:   v.GetString("LOG_FILE"),
				MaxSize:    100,
				MaxAge:     30,
				MaxBackups: 10,
				Compress:   true,
			},
		},
		Defaults: types.Settings{
			ProtectContent:           v.GetBool("PROTECT_CONTENT"),
			AutoDeleteTime:           v.GetInt("AUTO_DELETE_TIME"),
			AutoDeleteMessage:        v.GetString("AUTO_DELETE_MSG"),
			AutoDelSuccessMsg:        v.GetString("AUTO_DEL_SUCCESS_MSG"),
			StartMessage:             v.GetString("START_MESSAGE"),
			CustomCaption:            v.GetString("CUSTOM_CAPTION"),
			AdEnabled:                v.GetBool("AD_ENABLED"),
			AdLink:                   strings.TrimSpace(v.GetString("AD_LINK")),
			AdWaitTime:               v.GetInt("AD_WAIT_TIME"),
			ForceSubscription:        forceSubChannel != "",
			ForceSubscriptionChannel: forceSubChannel,
		},
		Texts: Texts{
			UserReply:       v.GetString("USER_REPLY_TEXT"),
			BotStats:        v.GetString("BOT_STATS_TEXT"),
			ForceSubMessage: v.GetString("FORCE_SUB_MESSAGE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.BotUsername == "" {
		errs = append(errs, errors.New("BOT_USERNAME is required"))
	}
	if c.ChannelID == 0 {
		errs = append(errs, errors.New("CHANNEL_ID is required"))
	}
	if c.Mode != ModePolling && c.Mode != ModeWebhook {
		errs = append(errs, fmt.Errorf("BOT_MODE must be %q or %q", ModePolling, ModeWebhook))
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q", StoragePostgres, StorageMemory))
	}
	if c.Reaper.BatchSize <= 0 {
		errs = append(errs, errors.New("REAPER_BATCH_SIZE must be positive"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// postgresDSN prefers POSTGRES_DSN and otherwise assembles a postgres:// URL
// from the POSTGRES_* parts. It is the only place the DSN is built.
func postgresDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString("POSTGRES_DSN")); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("POSTGRES_USER"), v.GetString("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(v.GetString("POSTGRES_HOST"), strconv.Itoa(v.GetInt("POSTGRES_PORT"))),
		Path:     "/" + v.GetString("POSTGRES_DB"),
		RawQuery: url.Values{"sslmode": {v.GetString("POSTGRES_SSLMODE")}}.Encode(),
	}
	return u.String()
}

func parseInt64(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseIDs(raw string) ([]int64, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
