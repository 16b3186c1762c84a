package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Scheduler  SchedulerConfig
	Correction CorrectionConfig
	Recovery   RecoveryConfig
	Overhead   OverheadConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. Redis backs the
// idempotency store for batch invocation keys; when disabled the
// in-memory store is used instead.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the monthly batch trigger configuration.
// Days are days of the month; hours are in 24h local time.
type SchedulerConfig struct {
	Enabled        string
	CorrectionDay  int
	CorrectionHour int
	RecoveryDay    int
	RecoveryHour   int
	JobTimeout     time.Duration
}

// CorrectionConfig holds the annual correction settings
type CorrectionConfig struct {
	// IndexKind is the process-wide index choice: IPCA or IGPM
	IndexKind string
	// RateMonthOffset shifts the rate reference month relative to the
	// anniversary month, matching the index publication lag
	RateMonthOffset int
	IdempotencyTTL  time.Duration
}

// RecoveryConfig holds the recovery allocator settings
type RecoveryConfig struct {
	IdempotencyTTL time.Duration
}

// OverheadBand is one configured tier of the production overhead table.
// Amounts are decimal strings so the schedule round-trips exactly.
type OverheadBand struct {
	UpTo string `mapstructure:"up_to"` // empty = open-ended last band
	Rate string `mapstructure:"rate"`
}

// OverheadConfig holds the externally configured tiered overhead rates
type OverheadConfig struct {
	ExplorationRate string         `mapstructure:"exploration_rate"`
	Bands           []OverheadBand `mapstructure:"bands"`
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CCO_ prefix (e.g., CCO_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CCO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetString("scheduler.enabled"),
			CorrectionDay:  v.GetInt("scheduler.correction_day"),
			CorrectionHour: v.GetInt("scheduler.correction_hour"),
			RecoveryDay:    v.GetInt("scheduler.recovery_day"),
			RecoveryHour:   v.GetInt("scheduler.recovery_hour"),
			JobTimeout:     v.GetDuration("scheduler.job_timeout"),
		},
		Correction: CorrectionConfig{
			IndexKind:       v.GetString("correction.index_kind"),
			RateMonthOffset: v.GetInt("correction.rate_month_offset"),
			IdempotencyTTL:  v.GetDuration("correction.idempotency_ttl"),
		},
		Recovery: RecoveryConfig{
			IdempotencyTTL: v.GetDuration("recovery.idempotency_ttl"),
		},
	}

	if err := v.UnmarshalKey("overhead", &cfg.Overhead); err != nil {
		return nil, fmt.Errorf("error parsing overhead table: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "costrecovery"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "costrecovery"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Scheduler.CorrectionDay == 0 {
		cfg.Scheduler.CorrectionDay = 1
	}
	if cfg.Scheduler.CorrectionHour == 0 {
		cfg.Scheduler.CorrectionHour = 2
	}
	if cfg.Scheduler.RecoveryDay == 0 {
		// After the month's production reports land
		cfg.Scheduler.RecoveryDay = 5
	}
	if cfg.Scheduler.RecoveryHour == 0 {
		cfg.Scheduler.RecoveryHour = 3
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Correction.IndexKind == "" {
		cfg.Correction.IndexKind = string(indexes.KindIPCA)
	}
	if cfg.Correction.IdempotencyTTL == 0 {
		cfg.Correction.IdempotencyTTL = 45 * 24 * time.Hour
	}
	if cfg.Recovery.IdempotencyTTL == 0 {
		cfg.Recovery.IdempotencyTTL = 45 * 24 * time.Hour
	}
	if cfg.Overhead.ExplorationRate == "" {
		cfg.Overhead.ExplorationRate = "0"
	}
	if len(cfg.Overhead.Bands) == 0 {
		cfg.Overhead.Bands = []OverheadBand{{UpTo: "", Rate: "0"}}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if !indexes.Kind(c.Correction.IndexKind).IsValid() {
		return fmt.Errorf("correction.index_kind must be IPCA or IGPM, got %q", c.Correction.IndexKind)
	}

	if _, err := c.OverheadTable(); err != nil {
		return err
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// IndexKind returns the configured index as a domain kind
func (c *Config) IndexKind() indexes.Kind {
	return indexes.Kind(c.Correction.IndexKind)
}

// OverheadTable converts the configured schedule into the domain table
func (c *Config) OverheadTable() (ledger.OverheadTable, error) {
	exploration, err := decimal.NewFromString(c.Overhead.ExplorationRate)
	if err != nil {
		return ledger.OverheadTable{}, fmt.Errorf("overhead.exploration_rate: %w", err)
	}

	bands := make([]ledger.VolumeBand, 0, len(c.Overhead.Bands))
	for i, b := range c.Overhead.Bands {
		rate, err := decimal.NewFromString(b.Rate)
		if err != nil {
			return ledger.OverheadTable{}, fmt.Errorf("overhead.bands[%d].rate: %w", i, err)
		}
		band := ledger.VolumeBand{Rate: rate}
		if b.UpTo != "" {
			bound, err := decimal.NewFromString(b.UpTo)
			if err != nil {
				return ledger.OverheadTable{}, fmt.Errorf("overhead.bands[%d].up_to: %w", i, err)
			}
			band.UpTo = &bound
		}
		bands = append(bands, band)
	}

	table := ledger.OverheadTable{ExplorationRate: exploration, Bands: bands}
	if err := table.Validate(); err != nil {
		return ledger.OverheadTable{}, err
	}
	return table, nil
}

// SchedulerEnabled reports whether the monthly triggers should start.
// Defaults to enabled unless explicitly set to "false".
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled != "false"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
