package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML, overridable through
// the environment. It is built once at process start and passed explicitly to
// the pieces that need it.
type FileConfig struct {
	DatabaseURL     string `yaml:"databaseURL"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	LogLevel        string `yaml:"logLevel"`
	SMTPHost        string `yaml:"smtpHost"`
	SMTPPort        string `yaml:"smtpPort"`
	EmailUser       string `yaml:"emailUser"`
	EmailPass       string `yaml:"emailPass"`
	FrontendURL     string `yaml:"frontendURL"`
	ResetCodeTTL    string `yaml:"resetTokenTTL"`
	ResetRatePerDay int    `yaml:"resetRatePerDay"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// fine as long as the environment supplies what validation requires.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		cfg.SMTPPort = v
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		cfg.EmailUser = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		cfg.EmailPass = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.FrontendURL = v
	}
	if v := os.Getenv("RESET_TOKEN_TTL"); v != "" {
		cfg.ResetCodeTTL = v
	}
	if v := os.Getenv("RESET_RATE_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ResetRatePerDay = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if cfg.EmailUser != "" && cfg.SMTPHost == "" {
		return errors.New("config: smtpHost is required when emailUser is set")
	}
	if cfg.ResetRatePerDay < 0 {
		return errors.New("config: resetRatePerDay must be >= 0")
	}
	return nil
}

// ParseResetTokenTTL parses the optional reset-token lifetime; zero means the
// caller's default applies.
func ParseResetTokenTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid resetTokenTTL duration: %w", err)
	}
	return dur, nil
}
