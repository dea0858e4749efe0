package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from an optional config
// file and environment variables.
type Config struct {
	Env            string   `mapstructure:"env"`
	ServerPort     string   `mapstructure:"server_port"`
	MigrationsPath string   `mapstructure:"migrations_path"`
	Database       DB       `mapstructure:"database"`
	Audio          Audio    `mapstructure:"audio"`
	Generator      Upstream `mapstructure:"generator"`
	Practice       Practice `mapstructure:"practice"`
}

// DB contains database connection parameters. Type selects the dialect
// (sqlite, postgres, mysql); Path is used by sqlite, URL by the rest.
type DB struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"-"`
}

// Audio configures the playback coordinator and the speech synthesizer.
type Audio struct {
	CacheDir     string        `mapstructure:"cache_dir"`
	CuesDir      string        `mapstructure:"cues_dir"`
	Locale       string        `mapstructure:"locale"`
	SpeechRate   float64       `mapstructure:"speech_rate"`
	SoundEnabled bool          `mapstructure:"sound_enabled"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// Upstream configures the example-generation endpoint (any
// OpenAI-compatible chat-completions server).
type Upstream struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"-"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Practice tunes the session engine.
type Practice struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetDefault("env", "local")
	v.SetDefault("server_port", "8080")
	v.SetDefault("migrations_path", "./migrations")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./echotype.db")
	v.SetDefault("audio.cache_dir", "./static/audio")
	v.SetDefault("audio.cues_dir", "./static/cues")
	v.SetDefault("audio.locale", "en")
	v.SetDefault("audio.speech_rate", 0.8)
	v.SetDefault("audio.sound_enabled", true)
	v.SetDefault("audio.fetch_timeout", "10s")
	v.SetDefault("generator.url", "http://localhost:11434")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.timeout", "30s")
	v.SetDefault("practice.settle_delay", "400ms")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets come from the environment only.
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("generator_api_key", "GENERATOR_API_KEY")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("server_port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.Database.URL = v.GetString("database_url")
	cfg.Generator.APIKey = v.GetString("generator_api_key")

	if t := strings.ToLower(cfg.Database.Type); t != "sqlite" && t != "sqlite3" && t != "" {
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("database type %q requires DATABASE_URL", cfg.Database.Type)
		}
	}

	return &cfg, nil
}
