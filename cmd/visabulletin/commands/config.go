package commands

import (
	"fmt"
	"time"

	"visabulletin/internal/components/chrono"
	"visabulletin/internal/fetch"
	"visabulletin/internal/notify"
	"visabulletin/lib/configutil"
	configlibsql "visabulletin/lib/configutil/libsql"
)

type Config struct {
	SourceURL         string              `json:"source_url"`
	BaseURL           string              `json:"base_url"`
	UserAgent         string              `json:"user_agent"`
	TimeoutSeconds    int                 `json:"timeout_seconds"`
	RequestsPerSecond float64             `json:"requests_per_second"`
	Database          configlibsql.Struct `json:"database"`
	SMTP              notify.SMTPConfig   `json:"smtp"`
	AppBaseURL        string              `json:"app_base_url"`
	PreviewDir        string              `json:"preview_dir"`
	// Schedule is a 5 field cron spec evaluated in UTC.
	Schedule   string `json:"schedule"`
	ListenPort int    `json:"listen_port"`
}

func DefaultConfig() Config {
	return Config{
		SourceURL:         fetch.DefaultSourceURL,
		UserAgent:         fetch.DefaultUserAgent,
		TimeoutSeconds:    30,
		RequestsPerSecond: 1,
		Database:          configlibsql.Struct{File: "visa_bulletin.db"},
		SMTP:              notify.SMTPConfig{Port: 587},
		AppBaseURL:        "http://localhost:5000",
		Schedule:          "0 14 * * *",
		ListenPort:        5000,
	}
}

// LoadConfig reads .env then the config file over the defaults, secrets in
// the environment win over both.
func LoadConfig(path string) (Config, error) {
	err := configutil.LoadEnv(".env")
	if err != nil {
		return Config{}, err
	}

	config, err := configutil.ReadWithDefaults(path, DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	configutil.Override(&config.SMTP.Server, "SMTP_SERVER")
	configutil.Override(&config.SMTP.Username, "SMTP_USERNAME")
	configutil.Override(&config.SMTP.Password, "SMTP_PASSWORD")
	configutil.Override(&config.SMTP.From, "SMTP_FROM")
	configutil.Override(&config.Database.AuthToken, "DATABASE_AUTH_TOKEN")
	configutil.Override(&config.AppBaseURL, "APP_BASE_URL")

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.Database.File == "" {
		return fmt.Errorf("config: database.file is required")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("config: listen_port %d is out of range", c.ListenPort)
	}
	if c.Schedule != "" {
		err := chrono.ValidateSchedule(c.Schedule)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func (c Config) Fetch() fetch.Config {
	return fetch.Config{
		SourceURL:         c.SourceURL,
		BaseURL:           c.BaseURL,
		UserAgent:         c.UserAgent,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// Redacted is the config with its secrets blanked, for printing.
func (c Config) Redacted() Config {
	if c.SMTP.Password != "" {
		c.SMTP.Password = "<redacted>"
	}
	if c.Database.AuthToken != "" {
		c.Database.AuthToken = "<redacted>"
	}
	return c
}
