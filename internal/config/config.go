package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds system-wide settings for all components.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Redis     *RedisConfig     `json:"redis"`
	Presence  *PresenceConfig  `json:"presence"`
	Worker    *WorkerConfig    `json:"worker"`
}

// DatabaseConfig configures the SQLite read-model store.
type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

// WebSocketConfig applies to both the dashboard stream and meeting room
// endpoints.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// RedisConfig selects the distributed bus/presence backends. An empty Addr
// keeps everything in-process.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PresenceConfig controls the online-flag TTL. Entries not refreshed within
// TTL expire to offline on their own.
type PresenceConfig struct {
	TTL time.Duration `json:"ttl"`
}

// WorkerConfig sizes the bounded pool that runs store writes and badge
// republish off the connection message loops.
type WorkerConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// DefaultConfig returns production-ready defaults: local SQLite store,
// in-process bus, 90s presence TTL matching the original idle window.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./studyhub.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Redis: &RedisConfig{},
		Presence: &PresenceConfig{
			TTL: 90 * time.Second,
		},
		Worker: &WorkerConfig{
			Workers:   8,
			QueueSize: 256,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Presence == nil || c.Presence.TTL <= 0 {
		return fmt.Errorf("presence TTL must be positive")
	}
	if c.Worker == nil || c.Worker.Workers <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker queue size must be positive")
	}
	return nil
}

// LoadFromEnv builds a config from defaults overridden by STUDYHUB_*
// environment variables. Unparseable values keep the default.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("STUDYHUB_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("STUDYHUB_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if dbPath := os.Getenv("STUDYHUB_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if dbTimeout := os.Getenv("STUDYHUB_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}
	if readTimeout := os.Getenv("STUDYHUB_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("STUDYHUB_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if pingInterval := os.Getenv("STUDYHUB_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if wsReadTimeout := os.Getenv("STUDYHUB_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}
	if wsWriteTimeout := os.Getenv("STUDYHUB_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}
	if bufferSize := os.Getenv("STUDYHUB_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}
	if addr := os.Getenv("STUDYHUB_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("STUDYHUB_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db := os.Getenv("STUDYHUB_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = n
		}
	}
	if ttl := os.Getenv("STUDYHUB_PRESENCE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Presence.TTL = d
		}
	}
	if workers := os.Getenv("STUDYHUB_WORKER_COUNT"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Worker.Workers = n
		}
	}
	if queue := os.Getenv("STUDYHUB_WORKER_QUEUE_SIZE"); queue != "" {
		if n, err := strconv.Atoi(queue); err == nil {
			config.Worker.QueueSize = n
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON parsing, with durations as strings.
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Redis     *RedisConfig         `json:"redis"`
	Presence  *PresenceConfigFile  `json:"presence"`
	Worker    *WorkerConfig        `json:"worker"`
}

type DatabaseConfigFile struct {
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

type PresenceConfigFile struct {
	TTL string `json:"ttl"`
}

// LoadFromFile reads a JSON configuration file over the defaults.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.Database != nil {
		if configFile.Database.Path != "" {
			config.Database.Path = configFile.Database.Path
		}
		if configFile.Database.Timeout != "" {
			if timeout, err := time.ParseDuration(configFile.Database.Timeout); err == nil {
				config.Database.Timeout = timeout
			}
		}
	}
	if configFile.HTTP != nil {
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}
	if configFile.WebSocket != nil {
		if configFile.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = configFile.WebSocket.BufferSize
		}
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = timeout
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = timeout
			}
		}
	}
	if configFile.Redis != nil {
		config.Redis = configFile.Redis
	}
	if configFile.Presence != nil && configFile.Presence.TTL != "" {
		if ttl, err := time.ParseDuration(configFile.Presence.TTL); err == nil {
			config.Presence.TTL = ttl
		}
	}
	if configFile.Worker != nil {
		if configFile.Worker.Workers > 0 {
			config.Worker.Workers = configFile.Worker.Workers
		}
		if configFile.Worker.QueueSize > 0 {
			config.Worker.QueueSize = configFile.Worker.QueueSize
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment >
// defaults. File errors are ignored so environment/defaults still work.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
