package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-gig-live/pkg/config"
	"github.com/weiawesome/wes-gig-live/pkg/database"
	"github.com/weiawesome/wes-gig-live/pkg/pubsub"
	"github.com/weiawesome/wes-gig-live/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  database.Config
	JWT       JWTConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Events    pubsub.Config
	Storage   storage.Config
	Chat      ChatConfig
	Internal  InternalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	Path           string
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// RedisConfig backs the sender summary cache. An empty address disables it.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	Prefix string
	TTL    time.Duration
}

type ChatConfig struct {
	MaxContentLength int   `mapstructure:"max_content_length"`
	DefaultPageSize  int   `mapstructure:"default_page_size"`
	MaxPageSize      int   `mapstructure:"max_page_size"`
	MaxUploadSize    int64 `mapstructure:"max_upload_size"`
}

type InternalConfig struct {
	// Token guards /api/v1/internal routes. Empty disables them.
	Token string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                  "PORT",
		"database.driver":              "DB_DRIVER",
		"database.host":                "DB_HOST",
		"database.port":                "DB_PORT",
		"database.user":                "DB_USER",
		"database.password":            "DB_PASSWORD",
		"database.dbname":              "DB_NAME",
		"database.sslmode":             "DB_SSLMODE",
		"database.file_path":           "DB_FILE_PATH",
		"jwt.secret":                   "JWT_SECRET",
		"jwt.issuer":                   "JWT_ISSUER",
		"redis.address":                "REDIS_ADDRESS",
		"redis.password":               "REDIS_PASSWORD",
		"events.driver":                "EVENTS_DRIVER",
		"events.kafka.brokers":         "KAFKA_BROKERS",
		"events.redis.address":         "EVENTS_REDIS_ADDRESS",
		"storage.driver":               "STORAGE_DRIVER",
		"storage.s3.endpoint":          "S3_ENDPOINT",
		"storage.s3.bucket":            "S3_BUCKET",
		"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
		"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
		"internal.token":               "INTERNAL_TOKEN",
		"log.level":                    "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.JWT.Leeway = parseDuration(v, "jwt.leeway", 0)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 5*time.Minute)
	cfg.Events.Redis.ReadTimeout = parseDuration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = parseDuration(v, "events.redis.write_timeout", 3*time.Second)
	cfg.Storage.URLTTL = parseDuration(v, "storage.url_ttl", 24*time.Hour)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/realtime.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.leeway", "0s")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "realtime:user")
	v.SetDefault("cache.ttl", "5m")

	d := pubsub.DefaultConfig()
	v.SetDefault("events.driver", d.Driver)
	v.SetDefault("events.redis.address", d.Redis.Address)
	v.SetDefault("events.redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")
	v.SetDefault("events.redis.stream_max_len", d.Redis.StreamMaxLen)
	v.SetDefault("events.kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("events.kafka.partitions", d.Kafka.Partitions)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/uploads")
	v.SetDefault("storage.local.public_prefix", "/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.url_ttl", "24h")

	v.SetDefault("chat.max_content_length", 5000)
	v.SetDefault("chat.default_page_size", 50)
	v.SetDefault("chat.max_page_size", 100)
	v.SetDefault("chat.max_upload_size", 10<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
