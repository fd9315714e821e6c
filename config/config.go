// Package config loads the bot configuration from .env, config.yaml and the
// environment. Environment variables win over the file: bot.token is read
// from BOT_TOKEN, api.base_url from API_BASE_URL and so on.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Log      LogConfig      `mapstructure:"log"`
	Status   StatusConfig   `mapstructure:"status"`
}

type BotConfig struct {
	Token          string   `mapstructure:"token"`
	AdminChannelID string   `mapstructure:"admin_channel_id"`
	Developers     []string `mapstructure:"developers"`
	// Commands are registered per guild when set, globally otherwise.
	DebugGuildIDs []string `mapstructure:"debug_guild_ids"`
}

type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PostsTimeout      time.Duration `mapstructure:"posts_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type TrackerConfig struct {
	Schedule         string `mapstructure:"schedule"`
	RefreshAtStartup bool   `mapstructure:"refresh_at_startup"`
	FetchConcurrency int    `mapstructure:"fetch_concurrency"`
	SendConcurrency  int    `mapstructure:"send_concurrency"`
	PruneSchedule    string `mapstructure:"prune_schedule"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type StatusConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	GinMode  string `mapstructure:"gin_mode"`
}

var defaults = map[string]any{
	"bot.token":                  "",
	"bot.admin_channel_id":       "",
	"bot.developers":             []string{},
	"bot.debug_guild_ids":        []string{},
	"api.base_url":               "",
	"api.token":                  "",
	"api.timeout":                "10s",
	"api.posts_timeout":          "30s",
	"api.requests_per_second":    0,
	"database.path":              "db/tracking.db",
	"tracker.schedule":           "@every 5m",
	"tracker.refresh_at_startup": false,
	"tracker.fetch_concurrency":  8,
	"tracker.send_concurrency":   4,
	"tracker.prune_schedule":     "@daily",
	"log.level":                  "info",
	"log.file":                   "",
	"log.max_size_mb":            50,
	"log.max_backups":            5,
	"log.max_age_days":           28,
	"status.http_addr":           "",
	"status.grpc_addr":           "",
	"status.gin_mode":            "release",
}

// LoadConfig reads .env and config.yaml from the working directory (or
// ./config) and applies the environment on top.
func LoadConfig() (*Config, error) {
	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Load(".", "./config")
}

// Load reads config.yaml from the first of dirs that has one. Without a
// config file only defaults and the environment are used.
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Bot.Developers = compact(cfg.Bot.Developers)
	cfg.Bot.DebugGuildIDs = compact(cfg.Bot.DebugGuildIDs)
	return &cfg, nil
}

// Validate reports the first setting that makes the bot unable to run.
func (c *Config) Validate() error {
	switch {
	case c.Bot.Token == "":
		return errors.New("bot.token is required")
	case c.API.BaseURL == "":
		return errors.New("api.base_url is required")
	case c.API.Timeout <= 0 || c.API.PostsTimeout <= 0:
		return errors.New("api timeouts must be positive")
	case c.Tracker.FetchConcurrency < 1:
		return fmt.Errorf("tracker.fetch_concurrency must be positive, got %d", c.Tracker.FetchConcurrency)
	case c.Tracker.SendConcurrency < 1:
		return fmt.Errorf("tracker.send_concurrency must be positive, got %d", c.Tracker.SendConcurrency)
	case c.Tracker.Schedule == "":
		return errors.New("tracker.schedule is required")
	}
	return nil
}

func compact(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
