// Package config loads server settings from an optional YAML file with
// GIFTLIST_* environment variables layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "GIFTLIST_"

type Config struct {
	Port           string      `yaml:"port"`
	DBPath         string      `yaml:"db_path"`
	LogLevel       string      `yaml:"log_level"`
	LogFormat      string      `yaml:"log_format"`
	BaseURL        string      `yaml:"base_url"`
	AllowedOrigins []string    `yaml:"allowed_origins"`
	GrantSecret    string      `yaml:"grant_secret"`
	Email          EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	From          string     `yaml:"from"`
	PostmarkToken string     `yaml:"postmark_token"`
	SMTP          SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func Default() *Config {
	return &Config{
		Port:      "8080",
		DBPath:    "giftlist.db",
		LogLevel:  "info",
		LogFormat: "text",
		Email: EmailConfig{
			From: "noreply@giftlist.local",
			SMTP: SMTPConfig{Port: 587},
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides. A missing file is an error only when a path was given.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("BASE_URL", &c.BaseURL)
	str("GRANT_SECRET", &c.GrantSecret)
	str("FROM_EMAIL", &c.Email.From)
	str("POSTMARK_TOKEN", &c.Email.PostmarkToken)
	str("SMTP_HOST", &c.Email.SMTP.Host)
	str("SMTP_USERNAME", &c.Email.SMTP.Username)
	str("SMTP_PASSWORD", &c.Email.SMTP.Password)

	if v := getenv(envPrefix + "ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	if v := getenv(envPrefix + "SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSMTP_PORT %q: %w", envPrefix, v, err)
		}
		c.Email.SMTP.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.GrantSecret != "" && len(c.GrantSecret) < 16 {
		return errors.New("grant_secret must be at least 16 characters")
	}
	if c.Email.SMTP.Host != "" && (c.Email.SMTP.Port <= 0 || c.Email.SMTP.Port > 65535) {
		return fmt.Errorf("invalid smtp port %d", c.Email.SMTP.Port)
	}
	return nil
}

// Mailer names the configured mail transport: "postmark", "smtp" or "log".
func (c *Config) Mailer() string {
	switch {
	case c.Email.PostmarkToken != "":
		return "postmark"
	case c.Email.SMTP.Host != "":
		return "smtp"
	default:
		return "log"
	}
}
