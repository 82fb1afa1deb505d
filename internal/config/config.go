package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required,oneof=local api"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	// LockTimeoutMs bounds every row-lock wait inside a transaction. Zero disables it.
	LockTimeoutMs int  `mapstructure:"lock_timeout_ms" validate:"gte=0"`
	AutoMigrate   bool `mapstructure:"auto_migrate"`
}

type BillingConfig struct {
	// Timezone of the practice, used to derive batch ids and listing cutoffs
	Timezone               string `mapstructure:"timezone" validate:"required"`
	ReferencePrefix        string `mapstructure:"reference_prefix"`
	RetryMaxAttempts       int    `mapstructure:"retry_max_attempts" validate:"gte=1"`
	RetryInitialIntervalMs int    `mapstructure:"retry_initial_interval_ms" validate:"gte=0"`
	RetryMaxIntervalMs     int    `mapstructure:"retry_max_interval_ms" validate:"gte=0"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real environment variables always win
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/clinicdesk")

	v.SetEnvPrefix("CLINICDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it without a config file
func setDefaults(v *viper.Viper) {
	def := GetDefaultConfig()
	v.SetDefault("deployment.mode", def.Deployment.Mode)
	v.SetDefault("server.address", def.Server.Address)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("postgres.host", def.Postgres.Host)
	v.SetDefault("postgres.port", def.Postgres.Port)
	v.SetDefault("postgres.user", def.Postgres.User)
	v.SetDefault("postgres.password", def.Postgres.Password)
	v.SetDefault("postgres.dbname", def.Postgres.DBName)
	v.SetDefault("postgres.sslmode", def.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", def.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", def.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", def.Postgres.ConnMaxLifetimeMinutes)
	v.SetDefault("postgres.lock_timeout_ms", def.Postgres.LockTimeoutMs)
	v.SetDefault("postgres.auto_migrate", def.Postgres.AutoMigrate)
	v.SetDefault("billing.timezone", def.Billing.Timezone)
	v.SetDefault("billing.reference_prefix", def.Billing.ReferencePrefix)
	v.SetDefault("billing.retry_max_attempts", def.Billing.RetryMaxAttempts)
	v.SetDefault("billing.retry_initial_interval_ms", def.Billing.RetryInitialIntervalMs)
	v.SetDefault("billing.retry_max_interval_ms", def.Billing.RetryMaxIntervalMs)
	v.SetDefault("sentry.enabled", def.Sentry.Enabled)
	v.SetDefault("sentry.dsn", def.Sentry.DSN)
	v.SetDefault("sentry.environment", def.Sentry.Environment)
	v.SetDefault("sentry.sample_rate", def.Sentry.SampleRate)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Billing.Location(); err != nil {
		return err
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "clinicdesk",
			Password:               "clinicdesk",
			DBName:                 "clinicdesk",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 60,
			LockTimeoutMs:          5000,
		},
		Billing: BillingConfig{
			Timezone:               "UTC",
			ReferencePrefix:        types.DefaultReferencePrefix,
			RetryMaxAttempts:       3,
			RetryInitialIntervalMs: 50,
			RetryMaxIntervalMs:     1000,
		},
		Sentry: SentryConfig{SampleRate: 1.0},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

func (c PostgresConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// Location resolves the practice timezone
func (c BillingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid billing timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c BillingConfig) GetReferencePrefix() string {
	if c.ReferencePrefix == "" {
		return types.DefaultReferencePrefix
	}
	return c.ReferencePrefix
}

func (c BillingConfig) RetryInitialInterval() time.Duration {
	return time.Duration(c.RetryInitialIntervalMs) * time.Millisecond
}

func (c BillingConfig) RetryMaxInterval() time.Duration {
	return time.Duration(c.RetryMaxIntervalMs) * time.Millisecond
}
