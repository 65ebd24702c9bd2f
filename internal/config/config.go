package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/utils"
)

const DefaultPath = "config.json"

const (
	StrategyThreadPerClient = "tpc"
	StrategyReactor         = "reactor"

	DriverMemory = "memory"
	DriverMongo  = "mongo"
)

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Strategy       string `json:"strategy"`
	Workers        int    `json:"workers"`
	MaxConnections int    `json:"max_connections"`
	MaxFrameSize   int    `json:"max_frame_size"`
	ReadTimeout    string `json:"read_timeout"`
}

type StompConfig struct {
	Version string `json:"version"`
	Host    string `json:"host"`
}

type WebSocketConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

type StoreConfig struct {
	Driver     string `json:"driver"`
	BcryptCost int    `json:"bcrypt_cost"`
	CacheSize  int    `json:"cache_size"`
	CacheTTL   string `json:"cache_ttl"`
}

type DatabaseConfig struct {
	Host               string `json:"host"`
	Port               uint64 `json:"port"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	Database           string `json:"database"`
	UseTLS             bool   `json:"use_tls"`
	ConnectTimeout     string `json:"connect_timeout"`
	SocketTimeout      string `json:"socket_timeout"`
	ConnectIdleTimeout string `json:"connect_idle_timeout"`
	OperationTimeout   string `json:"operation_timeout"`
	Heartbeat          string `json:"heartbeat"`
	MinPoolSize        uint64 `json:"min_pool_size"`
	MaxPoolSize        uint64 `json:"max_pool_size"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type Config struct {
	Server    ServerConfig    `json:"server"`
	Stomp     StompConfig     `json:"stomp"`
	WebSocket WebSocketConfig `json:"websocket"`
	Store     StoreConfig     `json:"store"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	DebugMode bool            `json:"debug_mode"`
	AppName   string          `json:"app_name"`
	LogDir    string          `json:"log_dir"`
}

// ErrCreated is returned by ReadConfig when the file did not exist and a default one was written.
var ErrCreated = errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")

// Default returns the configuration written for a fresh install.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8686,
			Strategy:       StrategyThreadPerClient,
			Workers:        8,
			MaxConnections: 10000,
			MaxFrameSize:   1 << 20,
			ReadTimeout:    "0s",
		},
		Stomp: StompConfig{
			Version: "1.2",
			Host:    "stomp.cs.bgu.ac.il",
		},
		WebSocket: WebSocketConfig{
			Port: 8687,
			Path: "/stomp",
		},
		Store: StoreConfig{
			Driver:     DriverMemory,
			BcryptCost: 10,
			CacheSize:  256,
			CacheTTL:   "1h",
		},
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               27017,
			Database:           "stomp",
			ConnectTimeout:     "10s",
			SocketTimeout:      "30s",
			ConnectIdleTimeout: "5m",
			OperationTimeout:   "5s",
			Heartbeat:          "10s",
			MinPoolSize:        1,
			MaxPoolSize:        20,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "stomp:broker:",
		},
		AppName: "life-stream-go-stomp-broker",
		LogDir:  "logs",
	}
}

var config Config
var initialized = false

// ReadConfig loads path, writing a default file and returning ErrCreated when it is missing.
func ReadConfig(path string) (Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("unable to read configuration file %s: %w", path, err)
		}
		data, _ := json.MarshalIndent(Default(), "", "\t")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return Config{}, fmt.Errorf("unable to create configuration file %s: %w", path, err)
		}
		return Default(), ErrCreated
	}

	result := Default()
	if err := json.Unmarshal(bytes, &result); err != nil {
		return Config{}, errors.New("the configuration file does not contain valid JSON")
	}
	if err := result.Validate(); err != nil {
		return Config{}, err
	}

	config = result
	initialized = true
	return result, nil
}

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return ReadConfig(DefaultPath)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: invalid port number %d", c.Server.Port)
	}
	if c.Server.Strategy != StrategyThreadPerClient && c.Server.Strategy != StrategyReactor {
		return fmt.Errorf("server.strategy: unknown strategy %q", c.Server.Strategy)
	}
	if c.Server.MaxFrameSize <= 0 {
		return fmt.Errorf("server.max_frame_size: must be positive")
	}
	if c.Stomp.Version == "" || c.Stomp.Host == "" {
		return fmt.Errorf("stomp: version and host are required")
	}
	if c.WebSocket.Enabled && (c.WebSocket.Port <= 0 || c.WebSocket.Port > 65535) {
		return fmt.Errorf("websocket.port: invalid port number %d", c.WebSocket.Port)
	}
	if c.Store.Driver != DriverMemory && c.Store.Driver != DriverMongo {
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	durations := map[string]string{
		"server.read_timeout":           c.Server.ReadTimeout,
		"store.cache_ttl":               c.Store.CacheTTL,
		"database.connect_timeout":      c.Database.ConnectTimeout,
		"database.socket_timeout":       c.Database.SocketTimeout,
		"database.connect_idle_timeout": c.Database.ConnectIdleTimeout,
		"database.operation_timeout":    c.Database.OperationTimeout,
		"database.heartbeat":            c.Database.Heartbeat,
	}
	for key, value := range durations {
		if _, err := utils.ParseStringTime(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}
