package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"docnest/pkg/config"
	"docnest/pkg/otel"

	"github.com/google/uuid"
)

type AppConfig struct {
	Env  string `yaml:"env"`
	Name string `yaml:"name"`
}

type RemindersConfig struct {
	ScanIntervalSeconds int   `yaml:"scan_interval_seconds"`
	DaysBefore          []int `yaml:"days_before"`
	BatchSize           int   `yaml:"batch_size"`
	RunOnStart          bool  `yaml:"run_on_start"`
	// TickTimeoutSeconds bounds one tick. 0 means the scan interval.
	TickTimeoutSeconds int `yaml:"tick_timeout_seconds"`
}

func (r RemindersConfig) ScanInterval() time.Duration {
	return time.Duration(r.ScanIntervalSeconds) * time.Second
}

func (r RemindersConfig) TickTimeout() time.Duration {
	return time.Duration(r.TickTimeoutSeconds) * time.Second
}

const (
	ChannelLog = "log"
	ChannelMQ  = "mq"
)

type BreakerConfig struct {
	Enabled          bool `yaml:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold"`
	TimeoutSeconds   int  `yaml:"timeout_seconds"`
}

type NotifierConfig struct {
	// Channels lists the notify channels: log, mq.
	Channels        []string      `yaml:"channels"`
	Dedup           bool          `yaml:"dedup"`
	DedupTTLSeconds int           `yaml:"dedup_ttl_seconds"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

func (n NotifierConfig) DedupTTL() time.Duration {
	return time.Duration(n.DedupTTLSeconds) * time.Second
}

type DemoConfig struct {
	Enabled   bool   `yaml:"enabled"`
	UserID    string `yaml:"user_id"`
	SubjectID string `yaml:"subject_id"`
}

type FileStoreConfig struct {
	RootPath string `yaml:"root_path"`
}

type Config struct {
	App       AppConfig            `yaml:"app"`
	Storage   config.StorageConfig `yaml:"storage"`
	DB        config.DBConfig      `yaml:"db"`
	MQ        config.MQConfig      `yaml:"mq"`
	Redis     config.RedisConfig   `yaml:"redis"`
	JWT       config.JWTConfig     `yaml:"jwt"`
	Server    config.ServerConfig  `yaml:"server"`
	Health    config.ServerConfig  `yaml:"health"`
	Reminders RemindersConfig      `yaml:"reminders"`
	Notifier  NotifierConfig       `yaml:"notifier"`
	Demo      DemoConfig           `yaml:"demo"`
	FileStore FileStoreConfig      `yaml:"file_store"`
	Otel      otel.Config          `yaml:"otel"`
}

// Defaults returns the values used for keys the YAML files leave out.
func Defaults() Config {
	return Config{
		App:     AppConfig{Env: "local", Name: "docnest"},
		Storage: config.StorageConfig{Driver: config.DriverPostgres, SQLitePath: "data/docnest.db"},
		DB: config.DBConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "docnest",
			SSLMode: "disable",
		},
		Server: config.ServerConfig{Port: "8080"},
		Health: config.ServerConfig{Port: "8081"},
		Reminders: RemindersConfig{
			ScanIntervalSeconds: 30,
			DaysBefore:          []int{30, 7, 1},
			BatchSize:           100,
		},
		Notifier: NotifierConfig{
			Channels:        []string{ChannelLog},
			DedupTTLSeconds: 86400,
			Breaker:         BreakerConfig{FailureThreshold: 5, TimeoutSeconds: 30},
		},
		FileStore: FileStoreConfig{RootPath: "data"},
		Otel:      otel.Config{ServiceName: "docnest", SampleRatio: 1},
	}
}

// LoadFrom reads the layered configuration for env from dir and applies the
// environment overrides.
func LoadFrom(env, dir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}
	if env != "" {
		cfg.App.Env = env
	}

	config.OverrideStorageFromEnv(&cfg.Storage)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	return &cfg, nil
}

// Load reads CONFIG_ENV from CONFIG_DIR (default "config") and exits on any error.
func Load() *Config {
	env := config.GetConfigEnv()
	dir := config.GetEnv("CONFIG_DIR", "config")

	cfg, err := LoadFrom(env, dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// Validate rejects settings the process cannot start with. Non-positive and
// repeated reminder offsets are not errors; the policy drops them.
func (c *Config) Validate() error {
	var errs []error

	if c.Reminders.ScanIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("reminders.scan_interval_seconds must be > 0, got %d", c.Reminders.ScanIntervalSeconds))
	}
	if c.Reminders.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("reminders.batch_size must be > 0, got %d", c.Reminders.BatchSize))
	}
	if c.Reminders.TickTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("reminders.tick_timeout_seconds must be >= 0, got %d", c.Reminders.TickTimeoutSeconds))
	}
	if len(c.Reminders.DaysBefore) == 0 {
		errs = append(errs, errors.New("reminders.days_before must not be empty"))
	}

	switch c.Storage.Driver {
	case config.DriverPostgres, config.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", config.DriverPostgres, config.DriverSQLite, c.Storage.Driver))
	}
	if c.Storage.Driver == config.DriverSQLite && strings.TrimSpace(c.Storage.SQLitePath) == "" {
		errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
	}

	for _, ch := range c.Notifier.Channels {
		if ch != ChannelLog && ch != ChannelMQ {
			errs = append(errs, fmt.Errorf("notifier.channels: unknown channel %q", ch))
		}
	}
	if len(c.Notifier.Channels) == 0 {
		errs = append(errs, errors.New("notifier.channels must not be empty"))
	}
	if c.Notifier.Dedup && c.Notifier.DedupTTLSeconds <= 0 {
		errs = append(errs, errors.New("notifier.dedup_ttl_seconds must be > 0 when dedup is on"))
	}

	if strings.Contains(c.JWT.Secret, "${") {
		errs = append(errs, errors.New("jwt.secret has an unresolved placeholder; set it in secrets.env or JWT_SECRET"))
	}

	if c.Demo.Enabled {
		if _, err := uuid.Parse(c.Demo.UserID); err != nil {
			errs = append(errs, fmt.Errorf("demo.user_id: %w", err))
		}
		if _, err := uuid.Parse(c.Demo.SubjectID); err != nil {
			errs = append(errs, fmt.Errorf("demo.subject_id: %w", err))
		}
	}

	return errors.Join(errs...)
}

// DevMode reports whether the API accepts requests without a bearer token.
func (c *Config) DevMode() bool {
	return c.JWT.Secret == ""
}

// DemoUserID returns the configured demo user, or uuid.Nil.
func (c *Config) DemoUserID() uuid.UUID {
	id, err := uuid.Parse(c.Demo.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (c *Config) DemoSubjectID() uuid.UUID {
	id, err := uuid.Parse(c.Demo.SubjectID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
