package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	// JWTSigningKey verifies bearer tokens issued by the auth service.
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`

	Scoring ScoringConfig `mapstructure:"SCORING"`
	Metrics MetricsConfig `mapstructure:"METRICS"`
}

// ScoringConfig tunes the scorer and mastery aggregator.
type ScoringConfig struct {
	// DecayRate is the recency weighting for weighted mastery, in (0,1].
	DecayRate float64 `mapstructure:"DECAY_RATE"`
	// NegativeMarking subtracts a matched distractor's marks instead of
	// just recording it as incorrect.
	NegativeMarking bool `mapstructure:"NEGATIVE_MARKING"`
	// ScoreTimeout bounds requirement resolution + performance writes.
	ScoreTimeout time.Duration `mapstructure:"SCORE_TIMEOUT"`
	// MasteryRetries bounds optimistic-conflict retries on cache updates.
	MasteryRetries int `mapstructure:"MASTERY_RETRIES"`
}

// MetricsConfig tunes the difficulty metrics calculator.
type MetricsConfig struct {
	// MinSampleSize below which a snapshot is flagged low_confidence.
	MinSampleSize int `mapstructure:"MIN_SAMPLE_SIZE"`
	// EasyThreshold/HardThreshold bucket avg_success_rate into levels:
	// above easy → easy, below hard → hard, otherwise medium.
	EasyThreshold float64 `mapstructure:"EASY_THRESHOLD"`
	HardThreshold float64 `mapstructure:"HARD_THRESHOLD"`
	// RecomputeInterval drives the background batch worker.
	RecomputeInterval time.Duration `mapstructure:"RECOMPUTE_INTERVAL"`
	// PeriodWindow is how far back each recompute looks.
	PeriodWindow time.Duration `mapstructure:"PERIOD_WINDOW"`
	// Workers caps concurrent per-context recomputes in a batch run.
	Workers int `mapstructure:"WORKERS"`
}

// Load reads configuration from config.yaml (optional) and environment
// variables prefixed with SCORING_, applying defaults for everything else.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "exam_user")
	viper.SetDefault("DB_PASSWORD", "exam_password")
	viper.SetDefault("DB_NAME", "exam_analytics")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("JWT_SIGNING_KEY", "exam-analytics-staging-signing-key-2026")
	viper.SetDefault("SCORING.DECAY_RATE", 0.3)
	viper.SetDefault("SCORING.NEGATIVE_MARKING", false)
	viper.SetDefault("SCORING.SCORE_TIMEOUT", "5s")
	viper.SetDefault("SCORING.MASTERY_RETRIES", 3)
	viper.SetDefault("METRICS.MIN_SAMPLE_SIZE", 30)
	viper.SetDefault("METRICS.EASY_THRESHOLD", 0.7)
	viper.SetDefault("METRICS.HARD_THRESHOLD", 0.4)
	viper.SetDefault("METRICS.RECOMPUTE_INTERVAL", "1h")
	viper.SetDefault("METRICS.PERIOD_WINDOW", "720h")
	viper.SetDefault("METRICS.WORKERS", 4)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("config.yaml not found, using environment variables and defaults")
		} else {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("SCORING")
	// Nested keys use dots internally; map them to underscores so
	// SCORING_SCORING_DECAY_RATE and friends resolve from the environment.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects parameter combinations the scoring math cannot support.
func (c *Config) Validate() error {
	if c.Scoring.DecayRate <= 0 || c.Scoring.DecayRate > 1 {
		return fmt.Errorf("SCORING.DECAY_RATE must be in (0,1], got %v", c.Scoring.DecayRate)
	}
	if c.Scoring.MasteryRetries < 1 {
		return fmt.Errorf("SCORING.MASTERY_RETRIES must be >= 1, got %d", c.Scoring.MasteryRetries)
	}
	if c.Metrics.MinSampleSize < 1 {
		return fmt.Errorf("METRICS.MIN_SAMPLE_SIZE must be >= 1, got %d", c.Metrics.MinSampleSize)
	}
	if c.Metrics.HardThreshold <= 0 || c.Metrics.EasyThreshold >= 1 ||
		c.Metrics.HardThreshold >= c.Metrics.EasyThreshold {
		return fmt.Errorf("difficulty thresholds must satisfy 0 < hard < easy < 1, got hard=%v easy=%v",
			c.Metrics.HardThreshold, c.Metrics.EasyThreshold)
	}
	if c.Metrics.Workers < 1 {
		return fmt.Errorf("METRICS.WORKERS must be >= 1, got %d", c.Metrics.Workers)
	}
	return nil
}
