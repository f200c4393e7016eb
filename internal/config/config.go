package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Camera      CameraConfig      `mapstructure:"camera"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the postgres connection string. An empty Host selects the
// in-memory store instead of postgres.
func (d DatabaseConfig) DSN() string {
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type CameraConfig struct {
	ID string `mapstructure:"id"`
}

type TrackerConfig struct {
	IoUThreshold float64 `mapstructure:"iou_threshold"`
	MinHits      int     `mapstructure:"min_hits"`
	MaxAge       int     `mapstructure:"max_age"`
}

type RecognitionConfig struct {
	Interval               int      `mapstructure:"interval"`
	Workers                int      `mapstructure:"workers"`
	QueueSize              int      `mapstructure:"queue_size"`
	MinDetectionConfidence float64  `mapstructure:"min_detection_confidence"`
	MinOCRConfidence       float64  `mapstructure:"min_ocr_confidence"`
	HighConfidence         float64  `mapstructure:"high_confidence"`
	Languages              []string `mapstructure:"languages"`
	ClassifierPadding      float64  `mapstructure:"classifier_padding"`
}

type BillingConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads config.yaml from the working directory or /etc/tollgate,
// overlaid with TOLLGATE_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tollgate")

	v.SetEnvPrefix("TOLLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tollgate")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tollgate")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("camera.id", "gate-1")

	v.SetDefault("tracker.iou_threshold", 0.3)
	v.SetDefault("tracker.min_hits", 3)
	v.SetDefault("tracker.max_age", 10)

	v.SetDefault("recognition.interval", 10)
	v.SetDefault("recognition.workers", 2)
	v.SetDefault("recognition.queue_size", 64)
	v.SetDefault("recognition.min_detection_confidence", 0.7)
	v.SetDefault("recognition.min_ocr_confidence", 0.5)
	v.SetDefault("recognition.high_confidence", 0.9)
	v.SetDefault("recognition.languages", []string{"en", "ne"})
	v.SetDefault("recognition.classifier_padding", 0.25)

	v.SetDefault("billing.debounce_window", 30*time.Second)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
