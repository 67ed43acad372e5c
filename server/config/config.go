package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileKey = "config"
	envPrefix     = "LOUNGE"
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	HTTP     HTTPConfig    `mapstructure:"http"`
	WS       WSConfig      `mapstructure:"ws"`
	Admin    AdminConfig   `mapstructure:"admin"`
	Persist  PersistConfig `mapstructure:"persist"`
	Store    StoreConfig   `mapstructure:"store"`
	Redis    RedisConfig   `mapstructure:"redis"`
	NATS     NATSConfig    `mapstructure:"nats"`
	Shutdown time.Duration `mapstructure:"shutdown_timeout"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type WSConfig struct {
	SendQueue      int           `mapstructure:"send_queue"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type AdminConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
}

type PersistConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	SQLiteDSN string `mapstructure:"sqlite_dsn"`
	MongoURI  string `mapstructure:"mongo_uri"`
	MongoDB   string `mapstructure:"mongo_db"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("ws.send_queue", 256)
	v.SetDefault("ws.write_wait", 10*time.Second)
	v.SetDefault("ws.pong_wait", 60*time.Second)
	v.SetDefault("ws.max_message_size", 64*1024)
	v.SetDefault("ws.allowed_origins", []string{})
	v.SetDefault("admin.grpc_addr", ":50051")
	v.SetDefault("persist.workers", 8)
	v.SetDefault("persist.queue_size", 128)
	v.SetDefault("persist.timeout", 3*time.Second)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_dsn", "./lounge.db")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_db", "lounge")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.prefix", "lounge")
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load resolves the configuration from defaults, an optional YAML file,
// LOUNGE_* environment variables and command line flags, in increasing
// precedence.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("lounge", pflag.ContinueOnError)
	fs.String(configFileKey, "", "config file (yaml)")
	fs.String("http-addr", v.GetString("http.addr"), "HTTP and WebSocket listen address")
	fs.String("grpc-addr", v.GetString("admin.grpc_addr"), "gRPC admin listen address")
	fs.String("store", v.GetString("store.driver"), "conversation store: sqlite, mongo or none")
	fs.String("log-level", v.GetString("log_level"), "log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	for key, flag := range map[string]string{
		"http.addr":       "http-addr",
		"admin.grpc_addr": "grpc-addr",
		"store.driver":    "store",
		"log_level":       "log-level",
		configFileKey:     configFileKey,
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString(configFileKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", file, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "mongo", "none":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Persist.Workers <= 0 {
		return fmt.Errorf("persist.workers must be positive, got %d", c.Persist.Workers)
	}
	if c.WS.SendQueue <= 0 {
		return fmt.Errorf("ws.send_queue must be positive, got %d", c.WS.SendQueue)
	}
	return nil
}
