package global

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the whole gateway configuration, loaded from environment
// variables with the GW_ prefix (GW_LISTEN_ADDR, GW_JWT_SECRET, ...).
type Config struct {
	ListenAddr     string   `envconfig:"LISTEN_ADDR" default:":8090"`
	NodeID         int64    `envconfig:"NODE_ID" default:"1"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTAlg    string `envconfig:"JWT_ALG" default:"HS256"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://127.0.0.1:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"marketplace"`

	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	StoreTimeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`
	TypingTTL        time.Duration `envconfig:"TYPING_TTL" default:"6s"`
	PresenceTTL      time.Duration `envconfig:"PRESENCE_TTL" default:"90s"`
	PingInterval     time.Duration `envconfig:"PING_INTERVAL" default:"25s"`
	PongTimeout      time.Duration `envconfig:"PONG_TIMEOUT" default:"60s"`
	WriteTimeout     time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`

	SendQueueSize int `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	FanoutWorkers int `envconfig:"FANOUT_WORKERS" default:"8"`
	FanoutQueue   int `envconfig:"FANOUT_QUEUE" default:"1024"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("gw", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
