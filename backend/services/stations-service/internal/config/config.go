package config

import (
	"fmt"
	"strings"
	"time"

	libconfig "radiowalk/backend/libs/config"
)

const defaultPort = "8083"

// Config defines stations service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"STATIONS_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN            string `yaml:"dsn" env:"STATIONS_POSTGRES_DSN" required:"true"`
		MigrateOnStart bool   `yaml:"migrateOnStart" env:"STATIONS_MIGRATE_ON_START"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"STATIONS_REDIS_ADDR"`
		Password string `yaml:"password" env:"STATIONS_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"STATIONS_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"STATIONS_REDIS_TTL"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret         string `yaml:"jwtSecret" env:"STATIONS_JWT_SECRET" required:"true"`
		JWTExpiresMinutes int    `yaml:"jwtExpiresMinutes" env:"STATIONS_JWT_EXPIRES_MINUTES"`
		InternalAPIKey    string `yaml:"internalApiKey" env:"STATIONS_INTERNAL_API_KEY" required:"true"`
	} `yaml:"auth"`
	Streams struct {
		CheckTimeout int `yaml:"checkTimeoutSeconds" env:"STATIONS_STREAM_CHECK_TIMEOUT"`
	} `yaml:"streams"`
	WS struct {
		PingInterval int `yaml:"pingIntervalSeconds" env:"STATIONS_WS_PING_INTERVAL"`
		WriteTimeout int `yaml:"writeTimeoutSeconds" env:"STATIONS_WS_WRITE_TIMEOUT"`
	} `yaml:"ws"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = defaultPort
	cfg.Database.MigrateOnStart = true
	cfg.Redis.TTL = 300
	cfg.Auth.JWTExpiresMinutes = 60 * 24
	cfg.Streams.CheckTimeout = 10
	cfg.WS.PingInterval = 30
	cfg.WS.WriteTimeout = 15
	return cfg
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// CacheEnabled reports whether a redis address is configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// CacheTTL returns station cache ttl.
func (c *Config) CacheTTL() time.Duration {
	return seconds(c.Redis.TTL, 5*time.Minute)
}

// TokenTTL returns JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.JWTExpiresMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.JWTExpiresMinutes) * time.Minute
}

// StreamCheckTimeout bounds validate-stream HEAD requests.
func (c *Config) StreamCheckTimeout() time.Duration {
	return seconds(c.Streams.CheckTimeout, 10*time.Second)
}

func (c *Config) WSPingInterval() time.Duration {
	return seconds(c.WS.PingInterval, 30*time.Second)
}

func (c *Config) WSWriteTimeout() time.Duration {
	return seconds(c.WS.WriteTimeout, 15*time.Second)
}

func seconds(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
