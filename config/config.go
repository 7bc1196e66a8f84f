// Package config handles fundwatch configuration from YAML files.
//
// Secrets (SMTP password, Mailgun API key) can be supplied via environment
// variables so they never have to live in the config file:
//
//	FUNDWATCH_SMTP_PASSWORD
//	FUNDWATCH_MAILGUN_API_KEY
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level fundwatch configuration.
type Config struct {
	Funds   []Fund        `yaml:"funds"`
	Browser BrowserConfig `yaml:"browser"`
	Files   FilesConfig   `yaml:"files"`
	Email   EmailConfig   `yaml:"email"`
}

// Fund identifies one fund factsheet to extract. Symbol and Name, when set,
// override whatever the page reports.
type Fund struct {
	URL    string `yaml:"url"`
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

// BrowserConfig controls the Chrome session and the extraction policy.
type BrowserConfig struct {
	Mode             string   `yaml:"mode"`      // headless | headful
	PageLoad         int      `yaml:"page_load"` // seconds to wait for the price marker
	MaxAttempts      int      `yaml:"max_attempts"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	DefaultCurrency  string   `yaml:"default_currency"`
}

// PageLoadTimeout returns the per-attempt render timeout.
func (b BrowserConfig) PageLoadTimeout() time.Duration {
	return time.Duration(b.PageLoad) * time.Second
}

// FilesConfig controls the price artifact and the run history database.
type FilesConfig struct {
	OutputCSV     string `yaml:"output_csv"`
	RetentionDays int    `yaml:"retention_days"` // 0 = keep everything
	RunHistoryDB  string `yaml:"run_history_db"` // empty = no run history
}

// EmailConfig controls failure escalation delivery.
type EmailConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Provider      string `yaml:"provider"` // smtp | mailgun | mock
	To            string `yaml:"to"`
	SubjectPrefix string `yaml:"subject_prefix"`

	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`

	MailgunDomain string `yaml:"mailgun_domain"`
	MailgunAPIKey string `yaml:"mailgun_api_key"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.PageLoad <= 0 {
		c.Browser.PageLoad = 20
	}
	if c.Browser.MaxAttempts <= 0 {
		c.Browser.MaxAttempts = 3
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Browser.DefaultCurrency == "" {
		c.Browser.DefaultCurrency = "AUD"
	}
	if c.Files.OutputCSV == "" {
		c.Files.OutputCSV = "price_data.csv"
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "mock"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FUNDWATCH_SMTP_PASSWORD"); v != "" {
		c.Email.SMTPPassword = v
	}
	if v := os.Getenv("FUNDWATCH_MAILGUN_API_KEY"); v != "" {
		c.Email.MailgunAPIKey = v
	}
}

func (c *Config) validate() error {
	if len(c.Funds) == 0 {
		return fmt.Errorf("config: no funds configured")
	}
	for i, f := range c.Funds {
		if f.URL == "" {
			return fmt.Errorf("config: funds[%d]: url is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: funds[%d]: malformed url %q", i, f.URL)
		}
	}

	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.mode must be headless or headful, got %q", c.Browser.Mode)
	}

	if c.Files.RetentionDays < 0 {
		return fmt.Errorf("config: files.retention_days must not be negative")
	}

	if c.Email.Enabled {
		if c.Email.To == "" {
			return fmt.Errorf("config: email.to is required when email is enabled")
		}
		switch c.Email.Provider {
		case "smtp", "mailgun", "mock":
		default:
			return fmt.Errorf("config: email.provider must be smtp, mailgun or mock, got %q", c.Email.Provider)
		}
	}
	return nil
}
