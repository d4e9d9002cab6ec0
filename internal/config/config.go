// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Every field has a workable default so the
// services start with no file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TelegramConfig configures the notify relay's Telegram sender.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Config is the shared configuration for all three services. Services read
// the subset they need.
type Config struct {
	// Listen is the HTTP bind address of the reminder API.
	Listen string `yaml:"listen"`
	// APIKey guards mutating endpoints when set.
	APIKey string `yaml:"api_key"`
	// DatabaseURL is the Postgres connection string for the record store.
	// Empty means the in-memory store.
	DatabaseURL string `yaml:"database_url"`
	// KafkaBrokers seed the delivery plane. Empty means the in-process
	// memory backend.
	KafkaBrokers []string `yaml:"kafka_brokers"`
	// Timezone is the IANA zone in which dates and times-of-day are
	// interpreted.
	Timezone string `yaml:"timezone"`

	// HorizonDays is the rolling lookahead for open-ended medications.
	HorizonDays int `yaml:"horizon_days"`
	// MaxOccurrences caps the reminder batch per record.
	MaxOccurrences int `yaml:"max_occurrences"`
	// AppointmentLead is how long before an appointment its reminder fires,
	// as a Go duration string.
	AppointmentLead string `yaml:"appointment_lead"`
	// ExpiryLeadDays moves prescription expiry reminders earlier.
	ExpiryLeadDays int `yaml:"expiry_lead_days"`
	// ExpiringWindowDays is the lookahead of the expiring-prescriptions view.
	ExpiringWindowDays int `yaml:"expiring_window_days"`

	// RefreshCron is the horizon relay's sweep schedule.
	RefreshCron string `yaml:"refresh_cron"`

	// OTLPEndpoint receives traces when set.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	Telegram TelegramConfig `yaml:"telegram"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:             ":8080",
		Timezone:           "Local",
		HorizonDays:        60,
		MaxOccurrences:     512,
		AppointmentLead:    "1h",
		ExpiryLeadDays:     0,
		ExpiringWindowDays: 30,
		RefreshCron:        "17 3 * * *",
	}
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REMIND_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("REMIND_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("REMIND_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("REMIND_REFRESH_CRON"); v != "" {
		c.RefreshCron = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

func (c *Config) normalize() error {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 60
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = 512
	}
	if c.ExpiringWindowDays <= 0 {
		c.ExpiringWindowDays = 30
	}
	if c.AppointmentLead == "" {
		c.AppointmentLead = "1h"
	}
	if _, err := time.ParseDuration(c.AppointmentLead); err != nil {
		return fmt.Errorf("bad appointment_lead %q: %w", c.AppointmentLead, err)
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "17 3 * * *"
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Lead returns the appointment lead as a duration. normalize already
// validated it.
func (c *Config) Lead() time.Duration {
	d, err := time.ParseDuration(c.AppointmentLead)
	if err != nil {
		return time.Hour
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
