// Package config loads process settings from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dentalbot/internal/availability"
	"dentalbot/internal/clinic"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendGoogle = "google"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	ClinicTimezone string `mapstructure:"CLINIC_TIMEZONE"`
	WorkStartHour  int    `mapstructure:"WORK_START_HOUR"`
	WorkEndHour    int    `mapstructure:"WORK_END_HOUR"`
	MinSlotMinutes int    `mapstructure:"MIN_SLOT_MINUTES"`
	SearchDays     int    `mapstructure:"SEARCH_DAYS"`

	SessionTimeout       time.Duration `mapstructure:"SESSION_TIMEOUT"`
	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`
	SessionBackend       string        `mapstructure:"SESSION_BACKEND"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	RedisPassword        string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int           `mapstructure:"REDIS_DB"`

	CalendarBackend       string        `mapstructure:"CALENDAR_BACKEND"`
	GoogleClientID        string        `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string        `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL     string        `mapstructure:"GOOGLE_REDIRECT_URL"`
	GoogleRefreshToken    string        `mapstructure:"GOOGLE_REFRESH_TOKEN"`
	PractitionerCalendars string        `mapstructure:"PRACTITIONER_CALENDARS"`
	CalendarTimeout       time.Duration `mapstructure:"CALENDAR_TIMEOUT"`

	ClassifierTimeout time.Duration `mapstructure:"CLASSIFIER_TIMEOUT"`
	GeminiAPIKey      string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel       string        `mapstructure:"GEMINI_MODEL"`

	PricingDocID     string `mapstructure:"PRICING_DOC_ID"`
	AuditDatabaseURL string `mapstructure:"AUDIT_DATABASE_URL"`
	AuditSheetID     string `mapstructure:"AUDIT_SHEET_ID"`

	StaticTokens       string `mapstructure:"STATIC_TOKENS"`
	JWTHMACSecret      string `mapstructure:"JWT_HMAC_SECRET"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// Clinic comes from the clinic section of config.yaml only.
	Clinic clinic.Catalog `mapstructure:"clinic"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"CLINIC_TIMEZONE", "WORK_START_HOUR", "WORK_END_HOUR", "MIN_SLOT_MINUTES", "SEARCH_DAYS",
	"SESSION_TIMEOUT", "SESSION_SWEEP_INTERVAL", "SESSION_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"CALENDAR_BACKEND", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL", "GOOGLE_REFRESH_TOKEN",
	"PRACTITIONER_CALENDARS", "CALENDAR_TIMEOUT",
	"CLASSIFIER_TIMEOUT", "GEMINI_API_KEY", "GEMINI_MODEL",
	"PRICING_DOC_ID", "AUDIT_DATABASE_URL", "AUDIT_SHEET_ID",
	"STATIC_TOKENS", "JWT_HMAC_SECRET", "RATE_LIMIT_PER_MINUTE",
}

// Load reads config.yaml from the working directory or ./config (or path, when
// given), then lets environment variables override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("WORK_START_HOUR", 9)
	v.SetDefault("WORK_END_HOUR", 18)
	v.SetDefault("MIN_SLOT_MINUTES", 15)
	v.SetDefault("SEARCH_DAYS", 14)
	v.SetDefault("SESSION_TIMEOUT", "30m")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1m")
	v.SetDefault("SESSION_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CALENDAR_BACKEND", BackendMemory)
	v.SetDefault("CALENDAR_TIMEOUT", "10s")
	v.SetDefault("CLASSIFIER_TIMEOUT", "8s")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Clinic.Practitioners) == 0 && len(cfg.Clinic.Treatments) == 0 {
		cfg.Clinic = clinic.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.WorkStartHour < 0 || c.WorkEndHour > 24 || c.WorkEndHour <= c.WorkStartHour {
		errs = append(errs, fmt.Errorf("working hours %d-%d are invalid", c.WorkStartHour, c.WorkEndHour))
	}
	if c.MinSlotMinutes <= 0 {
		errs = append(errs, errors.New("MIN_SLOT_MINUTES must be positive"))
	}
	if c.SearchDays <= 0 {
		errs = append(errs, errors.New("SEARCH_DAYS must be positive"))
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		errs = append(errs, fmt.Errorf("CLINIC_TIMEZONE: %w", err))
	}
	switch c.SessionBackend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}
	switch c.CalendarBackend {
	case BackendMemory:
	case BackendGoogle:
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" || c.GoogleRefreshToken == "" {
			errs = append(errs, errors.New("google calendar backend needs GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CALENDAR_BACKEND %q", c.CalendarBackend))
	}
	if len(c.Clinic.Practitioners) == 0 {
		errs = append(errs, errors.New("clinic has no practitioners"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location is the clinic time zone. Validate has already rejected bad names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Policy() availability.Policy {
	return availability.Policy{
		StartHour:          c.WorkStartHour,
		EndHour:            c.WorkEndHour,
		MinDurationMinutes: c.MinSlotMinutes,
		Location:           c.Location(),
	}
}

// Catalog returns the clinic catalog with PRACTITIONER_CALENDARS applied. The
// variable is a comma-separated list of practitionerID=calendarID pairs.
func (c *Config) Catalog() (clinic.Catalog, error) {
	cat := c.Clinic
	cat.Practitioners = append([]clinic.Practitioner(nil), c.Clinic.Practitioners...)
	if strings.TrimSpace(c.PractitionerCalendars) == "" {
		return cat, nil
	}
	for _, pair := range strings.Split(c.PractitionerCalendars, ",") {
		id, calID, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || id == "" || calID == "" {
			return clinic.Catalog{}, fmt.Errorf("PRACTITIONER_CALENDARS: malformed entry %q", pair)
		}
		found := false
		for i := range cat.Practitioners {
			if cat.Practitioners[i].ID == id {
				cat.Practitioners[i].CalendarID = calID
				found = true
			}
		}
		if !found {
			return clinic.Catalog{}, fmt.Errorf("PRACTITIONER_CALENDARS: unknown practitioner %q", id)
		}
	}
	return cat, nil
}

// Tokens splits STATIC_TOKENS on commas.
func (c *Config) Tokens() []string {
	var out []string
	for _, t := range strings.Split(c.StaticTokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
