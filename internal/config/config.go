package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name             string   `yaml:"name"`
		Locale           string   `yaml:"locale"`
		SupportedLocales []string `yaml:"supported_locales"`
	} `yaml:"app"`

	Server struct {
		Address        string        `yaml:"address"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Database Database `yaml:"database"`

	Auth Auth `yaml:"auth"`

	Graph Graph `yaml:"graph"`

	Bot Bot `yaml:"bot"`

	Timesheet Timesheet `yaml:"timesheet"`

	Reminder struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"reminder"`

	Logging Logging `yaml:"logging"`
}

type Database struct {
	Host     string `yaml:"host" env:"DB_HOST,required"`
	Port     int    `yaml:"port" env:"DB_PORT,required"`
	User     string `yaml:"user" env:"DB_USER,required"`
	Password string `yaml:"password" env:"DB_PASSWORD,required"`
	DBName   string `yaml:"dbname" env:"DB_NAME,required"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE,required"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// Auth describes how incoming bearer tokens are validated.
type Auth struct {
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	SigningSecret string        `yaml:"signing_secret"`
	PublicKeysPEM []string      `yaml:"public_keys_pem"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type Graph struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BatchSize    int    `yaml:"batch_size"`
}

type Bot struct {
	DiscordToken    string `yaml:"discord_token"`
	DiscordClientID string `yaml:"discord_client_id"`

	AppID       string `yaml:"app_id"`
	AppPassword string `yaml:"app_password"`
	TokenURL    string `yaml:"token_url"`
	Scope       string `yaml:"scope"`

	// Incoming Bot Framework activities are validated with these
	ActivityIssuer        string   `yaml:"activity_issuer"`
	ActivitySigningSecret string   `yaml:"activity_signing_secret"`
	ActivityPublicKeysPEM []string `yaml:"activity_public_keys_pem"`

	CardCacheTTL time.Duration `yaml:"card_cache_ttl"`
	// How long a Discord link code stays redeemable
	LinkCodeTTL time.Duration `yaml:"link_code_ttl"`
}

type Timesheet struct {
	FreezeDayOfMonth  int     `yaml:"freeze_day_of_month" json:"timesheetFreezeDayOfMonth"`
	DailyEffortLimit  float64 `yaml:"daily_effort_limit" json:"dailyEffortsLimit"`
	WeeklyEffortLimit float64 `yaml:"weekly_effort_limit" json:"weeklyEffortsLimit"`
	Timezone          string  `yaml:"timezone" json:"timezone"`
}

type Logging struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	SystemName string `yaml:"system_name"`
}

// Load reads the yaml file at path, replacing ${VAR} placeholders with
// values from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Replace environment variables in the YAML content
	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		placeholder := "${" + pair[0] + "}"
		content = strings.ReplaceAll(content, placeholder, pair[1])
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Convert DB_PORT from string to int if it's an environment variable
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT value: %w", err)
		}
		cfg.Database.Port = port
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "timesheet"
	}
	if c.App.Locale == "" {
		c.App.Locale = "en-US"
	}
	if len(c.App.SupportedLocales) == 0 {
		c.App.SupportedLocales = []string{c.App.Locale}
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Auth.CacheTTL == 0 {
		c.Auth.CacheTTL = 10 * time.Minute
	}
	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = "https://graph.microsoft.com/v1.0"
	}
	if c.Graph.TokenURL == "" && c.Graph.TenantID != "" {
		c.Graph.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.Graph.TenantID)
	}
	if c.Graph.BatchSize == 0 {
		c.Graph.BatchSize = 20
	}
	if c.Bot.TokenURL == "" {
		c.Bot.TokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	}
	if c.Bot.Scope == "" {
		c.Bot.Scope = "https://api.botframework.com/.default"
	}
	if c.Bot.ActivityIssuer == "" {
		c.Bot.ActivityIssuer = "https://api.botframework.com"
	}
	if c.Bot.CardCacheTTL == 0 {
		c.Bot.CardCacheTTL = time.Hour
	}
	if c.Bot.LinkCodeTTL == 0 {
		c.Bot.LinkCodeTTL = 10 * time.Minute
	}
	if c.Timesheet.DailyEffortLimit == 0 {
		c.Timesheet.DailyEffortLimit = 24
	}
	if c.Timesheet.WeeklyEffortLimit == 0 {
		c.Timesheet.WeeklyEffortLimit = 168
	}
	if c.Timesheet.Timezone == "" {
		c.Timesheet.Timezone = "UTC"
	}
	if c.Reminder.Schedule == "" {
		c.Reminder.Schedule = "0 10 * * 1-5"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.SystemName == "" {
		c.Logging.SystemName = c.App.Name
	}
}

// Validate checks values that would otherwise fail far from their source.
func (c *Config) Validate() error {
	var errs []error
	if _, err := language.Parse(c.App.Locale); err != nil {
		errs = append(errs, fmt.Errorf("invalid app.locale %q: %w", c.App.Locale, err))
	}
	for _, l := range c.App.SupportedLocales {
		if _, err := language.Parse(l); err != nil {
			errs = append(errs, fmt.Errorf("invalid app.supported_locales entry %q: %w", l, err))
		}
	}
	if c.Timesheet.FreezeDayOfMonth < 0 || c.Timesheet.FreezeDayOfMonth > 28 {
		errs = append(errs, fmt.Errorf("timesheet.freeze_day_of_month must be between 0 and 28, got %d", c.Timesheet.FreezeDayOfMonth))
	}
	if c.Timesheet.DailyEffortLimit > 24 {
		errs = append(errs, fmt.Errorf("timesheet.daily_effort_limit cannot exceed 24, got %v", c.Timesheet.DailyEffortLimit))
	}
	if c.Timesheet.WeeklyEffortLimit < c.Timesheet.DailyEffortLimit {
		errs = append(errs, errors.New("timesheet.weekly_effort_limit must not be lower than the daily limit"))
	}
	if _, err := time.LoadLocation(c.Timesheet.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timesheet.timezone %q: %w", c.Timesheet.Timezone, err))
	}
	if c.Graph.BatchSize < 1 || c.Graph.BatchSize > 20 {
		errs = append(errs, fmt.Errorf("graph.batch_size must be between 1 and 20, got %d", c.Graph.BatchSize))
	}
	return errors.Join(errs...)
}

// DSN builds the postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Locale returns the configured default language tag.
func (c *Config) Locale() language.Tag {
	return language.Make(c.App.Locale)
}

// Locales returns the supported language tags, default first.
func (c *Config) Locales() []language.Tag {
	tags := []language.Tag{c.Locale()}
	for _, l := range c.App.SupportedLocales {
		tag := language.Make(l)
		if tag != tags[0] {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Location returns the timezone calendar days are evaluated in.
func (t Timesheet) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
