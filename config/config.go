package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// DatabaseConfig holds connection parameters for Neon (or any Postgres).
// Either ConnectionString or the discrete Host/Name/User fields must be set
// for the production backend to be attempted.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	// ConnectionString is a full postgresql:// URL (DATABASE_URL); takes
	// precedence over the discrete fields.
	ConnectionString string `json:"connection_string"`

	// Pool bounds shared by all concurrent callers.
	PoolMinConns int `json:"pool_min_conns"`
	PoolMaxConns int `json:"pool_max_conns"`
}

// IsConfigured reports whether a production database is configured, either
// via connection string or discrete parameters.
func (d DatabaseConfig) IsConfigured() bool {
	return d.ConnectionString != "" || (d.Host != "" && d.Name != "" && d.User != "")
}

// Config holds all configurable server parameters.
type Config struct {
	HTTPPort      int    `json:"http_port"`
	MaxNameLength int    `json:"max_name_length"`
	LocalDBPath   string `json:"local_db_path"`

	// LeaderboardLimit is the default board size when a request omits limit.
	LeaderboardLimit int `json:"leaderboard_limit"`
	// LeaderboardCacheTTLSec is how long cached boards stay fresh.
	LeaderboardCacheTTLSec int `json:"leaderboard_cache_ttl_sec"`

	// JWTSecret signs session tokens issued by /api/login and /api/register.
	JWTSecret string `json:"jwt_secret"`
	// SessionTTLHours is the lifetime of issued session tokens.
	SessionTTLHours int `json:"session_ttl_hours"`
	// AuthJWKSURL, when set, switches bearer-token validation to a remote
	// JWKS endpoint (external identity provider) instead of JWTSecret.
	AuthJWKSURL string `json:"auth_jwks_url"`

	// DB holds the production database configuration.
	DB DatabaseConfig `json:"db"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		HTTPPort:               8080,
		MaxNameLength:          50,
		LocalDBPath:            "data/arcade.db",
		LeaderboardLimit:       10,
		LeaderboardCacheTTLSec: 60,
		SessionTTLHours:        24,
		DB: DatabaseConfig{
			Port:         5432,
			PoolMinConns: 2,
			PoolMaxConns: 10,
		},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	// Try to load from config.json
	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	// Environment variable overrides
	overrideInt(&cfg.HTTPPort, "HTTP_PORT")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideString(&cfg.LocalDBPath, "LOCAL_DB_PATH")
	overrideInt(&cfg.LeaderboardLimit, "LEADERBOARD_LIMIT")
	overrideInt(&cfg.LeaderboardCacheTTLSec, "LEADERBOARD_CACHE_TTL_SEC")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideInt(&cfg.SessionTTLHours, "SESSION_TTL_HOURS")
	overrideString(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")

	overrideString(&cfg.DB.ConnectionString, "DATABASE_URL")
	overrideString(&cfg.DB.Host, "DB_HOST")
	overrideInt(&cfg.DB.Port, "DB_PORT")
	overrideString(&cfg.DB.Name, "DB_NAME")
	overrideString(&cfg.DB.User, "DB_USER")
	overrideString(&cfg.DB.Password, "DB_PASSWORD")
	overrideInt(&cfg.DB.PoolMinConns, "DB_POOL_MIN_CONNS")
	overrideInt(&cfg.DB.PoolMaxConns, "DB_POOL_MAX_CONNS")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
