package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	JWTTTLMin   int      `mapstructure:"JWT_TTL_MINUTES"`
	PharmacyURL string   `mapstructure:"PHARMACY_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Scheduling and misconduct policy knobs.
	CheckupDurationMinutes int `mapstructure:"CHECKUP_DURATION_MINUTES"`
	LateCancelHours        int `mapstructure:"LATE_CANCEL_HOURS"`
	MaliciousThreshold     int `mapstructure:"MALICIOUS_THRESHOLD"`
	BlockThreshold         int `mapstructure:"BLOCK_THRESHOLD"`
	MisconductWindowDays   int `mapstructure:"MISCONDUCT_WINDOW_DAYS"`
	SweepIntervalSeconds   int `mapstructure:"SWEEP_INTERVAL_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_TTL_MINUTES", 60)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CHECKUP_DURATION_MINUTES", 60)
	v.SetDefault("LATE_CANCEL_HOURS", 72)
	v.SetDefault("MALICIOUS_THRESHOLD", 3)
	v.SetDefault("BLOCK_THRESHOLD", 5)
	v.SetDefault("MISCONDUCT_WINDOW_DAYS", 30)
	v.SetDefault("SWEEP_INTERVAL_SECONDS", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_TTL_MINUTES")
	v.BindEnv("PHARMACY_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("CHECKUP_DURATION_MINUTES")
	v.BindEnv("LATE_CANCEL_HOURS")
	v.BindEnv("MALICIOUS_THRESHOLD")
	v.BindEnv("BLOCK_THRESHOLD")
	v.BindEnv("MISCONDUCT_WINDOW_DAYS")
	v.BindEnv("SWEEP_INTERVAL_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// JWTTTL returns the configured access token lifetime.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMin) * time.Minute
}

// CheckupDuration returns the fixed length of a checkup slot.
func (c *Config) CheckupDuration() time.Duration {
	return time.Duration(c.CheckupDurationMinutes) * time.Minute
}

// LateCancelWindow returns how close to the start time a cancellation counts
// as late.
func (c *Config) LateCancelWindow() time.Duration {
	return time.Duration(c.LateCancelHours) * time.Hour
}

// MisconductWindow returns the trailing period over which late cancellations
// are counted.
func (c *Config) MisconductWindow() time.Duration {
	return time.Duration(c.MisconductWindowDays) * 24 * time.Hour
}

// SweepInterval returns how often the completion sweep runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// a real JWT secret is mandatory, and all policy thresholds must be positive.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.CheckupDurationMinutes <= 0 {
		return fmt.Errorf("CHECKUP_DURATION_MINUTES must be positive, got %d", c.CheckupDurationMinutes)
	}
	if c.LateCancelHours <= 0 {
		return fmt.Errorf("LATE_CANCEL_HOURS must be positive, got %d", c.LateCancelHours)
	}
	if c.MaliciousThreshold <= 0 || c.BlockThreshold <= 0 {
		return fmt.Errorf("misconduct thresholds must be positive, got malicious=%d block=%d",
			c.MaliciousThreshold, c.BlockThreshold)
	}
	if c.BlockThreshold < c.MaliciousThreshold {
		return fmt.Errorf("BLOCK_THRESHOLD (%d) must not be lower than MALICIOUS_THRESHOLD (%d)",
			c.BlockThreshold, c.MaliciousThreshold)
	}
	if c.MisconductWindowDays <= 0 {
		return fmt.Errorf("MISCONDUCT_WINDOW_DAYS must be positive, got %d", c.MisconductWindowDays)
	}
	return nil
}
