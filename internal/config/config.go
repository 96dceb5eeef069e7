package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is assembled once at startup and passed by reference to component
// constructors. Nothing in here changes after Load returns; runtime-mutable
// bookkeeping (roster message ids, cooldown timestamps) lives in the store.
type Config struct {
	// Telegram
	BotToken     string
	BridgeChatID int64
	BridgeTopic  int // forum topic id for relayed game chat, 0 = none
	AlertChatID  int64

	// Console
	ConsoleAddr     string // host:port of the websocket console
	ConsolePassword string
	RetryDelay      time.Duration

	// Game log
	LogPath string

	// Relay
	RelayTag        string
	CooldownSeconds int
	ProfanityPath   string

	// Ops API
	ListenAddr string
	OpsUser    string
	OpsPass    string

	// Storage
	DataDir      string
	DatabasePath string
}

func Load() (*Config, error) {
	dataDir, err := filepath.Abs(envOr("CRAFTLINK_DATA_DIR", "./data"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	cfg := &Config{
		BotToken:        os.Getenv("CRAFTLINK_BOT_TOKEN"),
		ConsoleAddr:     os.Getenv("CRAFTLINK_CONSOLE_ADDR"),
		ConsolePassword: os.Getenv("CRAFTLINK_CONSOLE_PASS"),
		RetryDelay:      envDuration("CRAFTLINK_RETRY_DELAY", 30*time.Second),
		LogPath:         envOr("CRAFTLINK_LOG_PATH", "./logs/latest.log"),
		RelayTag:        envOr("CRAFTLINK_RELAY_TAG", "[TG]"),
		CooldownSeconds: envInt("CRAFTLINK_COOLDOWN_SECONDS", 60),
		ProfanityPath:   os.Getenv("CRAFTLINK_PROFANITY_LIST"),
		ListenAddr:      envOr("CRAFTLINK_LISTEN", ":8080"),
		OpsUser:         envOr("CRAFTLINK_OPS_USER", "admin"),
		OpsPass:         envOr("CRAFTLINK_OPS_PASS", "admin"),
		DataDir:         dataDir,
		DatabasePath:    envOr("CRAFTLINK_DB", filepath.Join(dataDir, "craftlink.db")),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("CRAFTLINK_BOT_TOKEN is required")
	}
	if cfg.ConsoleAddr == "" {
		return nil, fmt.Errorf("CRAFTLINK_CONSOLE_ADDR is required")
	}

	cfg.BridgeChatID, err = envChatID("CRAFTLINK_BRIDGE_CHAT")
	if err != nil {
		return nil, err
	}
	if cfg.BridgeChatID == 0 {
		return nil, fmt.Errorf("CRAFTLINK_BRIDGE_CHAT is required")
	}
	cfg.BridgeTopic = envInt("CRAFTLINK_BRIDGE_TOPIC", 0)

	cfg.AlertChatID, err = envChatID("CRAFTLINK_ALERT_CHAT")
	if err != nil {
		return nil, err
	}
	if cfg.AlertChatID == 0 {
		cfg.AlertChatID = cfg.BridgeChatID
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envChatID(key string) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid chat id %q", key, v)
	}
	return id, nil
}
