// Package config loads holidayd settings from YAML, an optional .env file and
// HOLIDAY_* environment variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/warp/holiday-engine/generic"
	"github.com/warp/holiday-engine/holiday"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres memory"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
	URL    string `yaml:"url" validate:"required_if=Driver postgres"`
}

// HolidayYearConfig is the fixed anniversary the holiday year starts on.
type HolidayYearConfig struct {
	StartMonth int `yaml:"startMonth" validate:"min=1,max=12"`
	StartDay   int `yaml:"startDay" validate:"min=1,max=31"`
}

// EntitlementConfig holds the statutory constants. Numbers are kept as text
// so they reach the calculator as exact decimals.
type EntitlementConfig struct {
	StatutoryWeeks              string `yaml:"statutoryWeeks" validate:"required,numeric"`
	HoursPerDay                 string `yaml:"hoursPerDay" validate:"required,numeric"`
	DaysPerMonth                string `yaml:"daysPerMonth" validate:"required,numeric"`
	ProRataMode                 string `yaml:"proRataMode" validate:"oneof=latest_change segmented"`
	LegacyZeroHoursWindowFactor bool   `yaml:"legacyZeroHoursWindowFactor"`
}

type SweepConfig struct {
	Schedule string        `yaml:"schedule" validate:"required"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	HolidayYear HolidayYearConfig `yaml:"holidayYear"`
	Entitlement EntitlementConfig `yaml:"entitlement"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Log         LogConfig         `yaml:"log"`
}

var validate = validator.New()

// Default is the UK setup: April 6 year, 5.6 weeks, 12 hour day, SQLite file.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "holiday.db"},
		HolidayYear: HolidayYearConfig{
			StartMonth: int(generic.UKTaxYear.StartMonth),
			StartDay:   generic.UKTaxYear.StartDay,
		},
		Entitlement: EntitlementConfig{
			StatutoryWeeks: "5.6",
			HoursPerDay:    "12",
			DaysPerMonth:   generic.DefaultDaysPerMonth.String(),
			ProRataMode:    string(holiday.ProRataLatestChange),
		},
		Sweep: SweepConfig{Schedule: "@every 1m", Timeout: 30 * time.Second},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv reads .env from the working directory if there is one. Variables
// already set in the environment are not overwritten.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOLIDAY_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("HOLIDAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HOLIDAY_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("HOLIDAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HOLIDAY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate checks struct tags, then that the constants form a usable policy.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := cfg.Policy(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Policy builds the calculation policy.
func (c *Config) Policy() (holiday.Policy, error) {
	p := holiday.DefaultPolicy()
	p.Year = generic.PeriodConfig{
		StartMonth: time.Month(c.HolidayYear.StartMonth),
		StartDay:   c.HolidayYear.StartDay,
	}

	var err error
	if p.StatutoryWeeks, err = decimal.NewFromString(c.Entitlement.StatutoryWeeks); err != nil {
		return p, fmt.Errorf("entitlement.statutoryWeeks: %w", err)
	}
	if p.HoursPerDay, err = decimal.NewFromString(c.Entitlement.HoursPerDay); err != nil {
		return p, fmt.Errorf("entitlement.hoursPerDay: %w", err)
	}
	if p.DaysPerMonth, err = decimal.NewFromString(c.Entitlement.DaysPerMonth); err != nil {
		return p, fmt.Errorf("entitlement.daysPerMonth: %w", err)
	}
	if c.Entitlement.ProRataMode != "" {
		p.ProRataMode = holiday.ProRataMode(c.Entitlement.ProRataMode)
	}
	p.LegacyZeroHoursWindowFactor = c.Entitlement.LegacyZeroHoursWindowFactor

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
