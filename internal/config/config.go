// Package config loads ledgersync settings from a YAML file, the environment and CLI flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. LEDGERSYNC_CANVAS_TOKEN.
const EnvPrefix = "LEDGERSYNC"

// Config holds all configuration values for the application.
type Config struct {
	Database Database
	Canvas   Canvas
	Email    Email
	Report   Report
	Log      Log
	Watch    Watch

	// DryRun reports would-be inserts without writing to the ledger.
	DryRun bool

	// OTLP gRPC collector address; empty disables tracing.
	OTELEndpoint string
}

// Database describes the ledger connection.
type Database struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is the database file for the sqlite driver.
	Path string
}

// Canvas holds the Canvas API settings.
type Canvas struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	ProfileWorkers int
	// RateLimit is requests per second; 0 means unlimited.
	RateLimit float64
}

// Email holds the SendGrid settings.
type Email struct {
	SendGridAPIKey string
	From           string
	To             []string
}

// Report holds rendering options.
type Report struct {
	AdminBaseURL string
	Timezone     string
}

type Log struct {
	Level  string
	Format string
}

type Watch struct {
	Interval time.Duration
	Addr     string
}

// Option customizes Load.
type Option func(*viper.Viper) error

// WithFlag binds a command-line flag to a config key. Flags that were set explicitly
// take precedence over the file and the environment.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		return v.BindPFlag(key, flag)
	}
}

// Load reads configuration. An empty path looks for ledgersync.yaml in the working
// directory and tolerates its absence; an explicit path must exist.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ledgersync")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("failed to bind flag: %w", err)
		}
	}

	cfg := &Config{
		Database: Database{
			Driver:   strings.ToLower(v.GetString("database.driver")),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Name:     v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
			Path:     v.GetString("database.path"),
		},
		Canvas: Canvas{
			BaseURL:        v.GetString("canvas.base_url"),
			Token:          v.GetString("canvas.token"),
			Timeout:        v.GetDuration("canvas.timeout"),
			ProfileWorkers: v.GetInt("canvas.profile_workers"),
			RateLimit:      v.GetFloat64("canvas.rate_limit"),
		},
		Email: Email{
			SendGridAPIKey: v.GetString("email.sendgrid_api_key"),
			From:           v.GetString("email.from"),
			To:             stringList(v.Get("email.to")),
		},
		Report: Report{
			AdminBaseURL: strings.TrimRight(v.GetString("report.admin_base_url"), "/"),
			Timezone:     v.GetString("report.timezone"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Watch: Watch{
			Interval: v.GetDuration("watch.interval"),
			Addr:     v.GetString("watch.addr"),
		},
		DryRun:       v.GetBool("dry_run"),
		OTELEndpoint: v.GetString("otel.endpoint"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.path", "")
	v.SetDefault("canvas.base_url", "https://calstatela.instructure.com/api/v1")
	v.SetDefault("canvas.token", "")
	v.SetDefault("canvas.timeout", 30*time.Second)
	v.SetDefault("canvas.profile_workers", 10)
	v.SetDefault("canvas.rate_limit", 0)
	v.SetDefault("email.sendgrid_api_key", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", []string{})
	v.SetDefault("report.admin_base_url", "")
	v.SetDefault("report.timezone", "America/Los_Angeles")
	v.SetDefault("dry_run", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("watch.interval", 24*time.Hour)
	v.SetDefault("watch.addr", ":6162")
	v.SetDefault("otel.endpoint", "")
}

// stringList accepts a YAML list or a comma-separated string (the env form).
func stringList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func required(key string) error {
	env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return fmt.Errorf("%s is required (env: %s)", key, env)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Name == "" {
			return required("database.name")
		}
		if c.Database.User == "" {
			return required("database.user")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return required("database.path")
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be mysql, postgres or sqlite", c.Database.Driver)
	}

	if c.Canvas.ProfileWorkers < 1 {
		return fmt.Errorf("canvas.profile_workers must be at least 1, got %d", c.Canvas.ProfileWorkers)
	}
	if c.Canvas.RateLimit < 0 {
		return fmt.Errorf("canvas.rate_limit must not be negative, got %v", c.Canvas.RateLimit)
	}

	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %v", c.Watch.Interval)
	}

	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("invalid report.timezone %q: %w", c.Report.Timezone, err)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format %q: must be json or text", c.Log.Format)
	}
	return nil
}

// ValidateCanvas reports whether the Canvas settings are complete.
// Only commands that talk to Canvas need them.
func (c *Config) ValidateCanvas() error {
	if c.Canvas.BaseURL == "" {
		return required("canvas.base_url")
	}
	if c.Canvas.Token == "" {
		return required("canvas.token")
	}
	return nil
}

// ValidateEmail reports whether the notification settings are complete.
// Only commands that send mail need them.
func (c *Config) ValidateEmail() error {
	if c.Email.SendGridAPIKey == "" {
		return required("email.sendgrid_api_key")
	}
	if c.Email.From == "" {
		return required("email.from")
	}
	if len(c.Email.To) == 0 {
		return required("email.to")
	}
	return nil
}

// Location returns the configured report timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Report.Timezone)
}

// DSN returns the driver-specific data source name.
func (d Database) DSN() string {
	switch d.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.port(3306)))
		mc.DBName = d.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.port(5432))),
			Path:   "/" + d.Name,
		}
		q := url.Values{}
		q.Set("sslmode", d.SSLMode)
		u.RawQuery = q.Encode()
		return u.String()
	default:
		return d.Path
	}
}

func (d Database) port(def int) int {
	if d.Port == 0 {
		return def
	}
	return d.Port
}
