// Package config provides configuration loading and validation for the
// newsradar pipeline. Values come from defaults, an optional config.yaml,
// and RADAR_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default values for optional configuration parameters.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWindowHours    = 24
	DefaultDedupThreshold = 0.78
	DefaultMinHotness     = 0.45

	DefaultSourceMode  = "telegram"
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second

	DefaultArchivePath = "newsradar.db"

	DefaultValidatorModel    = "gemini-2.0-flash"
	DefaultValidatorMinScore = 7.0

	DefaultScheduleInterval = 15 * time.Minute
)

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// AnalyzerConfig tunes the clustering and scoring stage.
type AnalyzerConfig struct {
	WindowHours        int                `mapstructure:"window_hours"    validate:"min=1,max=168"`
	DedupThreshold     float64            `mapstructure:"dedup_threshold" validate:"min=0,max=1"`
	MinHotness         float64            `mapstructure:"min_hotness"     validate:"min=0,max=1"`
	ChannelQuality     map[string]float64 `mapstructure:"channel_quality" validate:"dive,min=0,max=1"`
	ChannelQualityFile string             `mapstructure:"channel_quality_file"`
}

// SourceConfig selects and tunes the message source.
type SourceConfig struct {
	Mode         string        `mapstructure:"mode" validate:"oneof=telegram rss replay"`
	Channels     []string      `mapstructure:"channels"`
	ChannelsFile string        `mapstructure:"channels_file"`
	MessagesFile string        `mapstructure:"messages_file"`
	RSSTemplate  string        `mapstructure:"rss_template"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BaseDelay    time.Duration `mapstructure:"base_delay"   validate:"min=1ms"`
	MaxDelay     time.Duration `mapstructure:"max_delay"    validate:"min=1ms"`
}

// ArchiveConfig controls the candidate store.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ValidatorConfig controls the optional AI credibility pass. The pass is
// skipped when no API key is configured.
type ValidatorConfig struct {
	APIKey   string  `mapstructure:"api_key"`
	Model    string  `mapstructure:"model"`
	MinScore float64 `mapstructure:"min_score" validate:"min=0,max=10"`
}

// PublishConfig controls delivery of candidates to an operator chat.
type PublishConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" validate:"required_if=Enabled true"`
	ChatID   int64  `mapstructure:"chat_id"   validate:"required_if=Enabled true"`
}

// SchedulerConfig controls daemon mode.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"min=1m"`
}

// Config aggregates all pipeline settings.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Source    SourceConfig    `mapstructure:"source"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Output    string          `mapstructure:"output"`
}

// Load reads configuration from defaults, an optional config file, and
// RADAR_* environment variables, then validates the result. An empty
// path looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file is fine, defaults and env still apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("analyzer.window_hours", DefaultWindowHours)
	v.SetDefault("analyzer.dedup_threshold", DefaultDedupThreshold)
	v.SetDefault("analyzer.min_hotness", DefaultMinHotness)

	v.SetDefault("source.mode", DefaultSourceMode)
	v.SetDefault("source.max_attempts", DefaultMaxAttempts)
	v.SetDefault("source.base_delay", DefaultBaseDelay)
	v.SetDefault("source.max_delay", DefaultMaxDelay)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", DefaultArchivePath)

	v.SetDefault("validator.model", DefaultValidatorModel)
	v.SetDefault("validator.min_score", DefaultValidatorMinScore)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", DefaultScheduleInterval)
}
