// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Rooms    RoomsConfig    `mapstructure:"rooms"`
	Games    GamesConfig    `mapstructure:"games"`
	History  HistoryConfig  `mapstructure:"history"`
}

// ServerConfig holds the websocket server configuration.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RoomsConfig holds room lifecycle configuration.
type RoomsConfig struct {
	// WaitingTimeout is how long a room may wait for players before it is
	// reclaimed.
	WaitingTimeout time.Duration `mapstructure:"waiting_timeout"`
	// RetainFinished is how long a finished room stays queryable.
	RetainFinished time.Duration `mapstructure:"retain_finished"`
	// ReapInterval is how often idle rooms are scanned for.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	// LockTimeout bounds how long an action waits for a room's exclusive
	// section.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Nim NimConfig `mapstructure:"nim"`
}

// NimConfig holds subtraction game configuration.
type NimConfig struct {
	InitialObjects int `mapstructure:"initial_objects"`
	MaxTake        int `mapstructure:"max_take"`
}

// HistoryConfig holds finished-game recording configuration.
type HistoryConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	QueueSize int  `mapstructure:"queue_size"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., SERVER_ADDR, DATABASE_HOST, ROOMS_WAITING_TIMEOUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gameserver")
	v.SetDefault("database.name", "gameserver")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Room lifecycle defaults
	v.SetDefault("rooms.waiting_timeout", "10m")
	v.SetDefault("rooms.retain_finished", "5m")
	v.SetDefault("rooms.reap_interval", "30s")
	v.SetDefault("rooms.lock_timeout", "5s")

	// Game defaults
	v.SetDefault("games.nim.initial_objects", 21)
	v.SetDefault("games.nim.max_take", 3)

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.queue_size", 256)
}
