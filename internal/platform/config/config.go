// Package config loads service configuration from environment variables and an
// optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	liststr "formintake/pkg/platform/strings"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Server   Server
	Database Database
	Redis    RedisConfig
	Cache    Cache
	Kafka    Kafka
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Addr is the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Database struct {
	Driver     string
	URL        string
	SQLitePath string
}

// RedisConfig configures the optional record cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Cache struct {
	TTL time.Duration
}

// Kafka configures accepted-registration events. No brokers disables publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

type Log struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default so environment variables
// bind even when no config file is present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("database_driver", DriverSQLite)
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "data/database.sqlite")
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_min_idle_conns", 2)
	v.SetDefault("redis_dial_timeout", 5*time.Second)
	v.SetDefault("redis_read_timeout", 3*time.Second)
	v.SetDefault("redis_write_timeout", 3*time.Second)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "registrations.accepted")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// New returns a viper instance with defaults and environment binding applied.
// configFile is optional.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load reads and validates the configuration.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: Server{
			Port:            v.GetInt("port"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		Database: Database{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString("database_driver"))),
			URL:        v.GetString("database_url"),
			SQLitePath: v.GetString("sqlite_path"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis_url"),
			PoolSize:     v.GetInt("redis_pool_size"),
			MinIdleConns: v.GetInt("redis_min_idle_conns"),
			DialTimeout:  v.GetDuration("redis_dial_timeout"),
			ReadTimeout:  v.GetDuration("redis_read_timeout"),
			WriteTimeout: v.GetDuration("redis_write_timeout"),
		},
		Cache: Cache{TTL: v.GetDuration("cache_ttl")},
		Kafka: Kafka{
			Brokers: liststr.SplitList(v.GetString("kafka_brokers"), ","),
			Topic:   v.GetString("kafka_topic"),
		},
		Log: Log{
			Level:  v.GetString("log_level"),
			Format: strings.ToLower(v.GetString("log_format")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database_driver %q", c.Database.Driver))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka_topic is required when kafka_brokers is set"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
