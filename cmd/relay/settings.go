package main

import (
	"strings"
	"time"
)

type Settings struct {
	Port        int    `env:"PORT,default=8000"`
	BasePath    string `env:"BASE_PATH"`
	LogEncoding string `env:"LOG_ENCODING,default=dev"`
	LogLevel    string `env:"LOG_LEVEL,default=debug"`
	NodeId      string `env:"NODE_ID"`

	JWTSecret   string   `env:"JWT_SECRET,required=true"`
	JWTAudience string   `env:"JWT_AUDIENCE"`
	APIKeys     []string `env:"API_KEYS,separator=,"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	SendQueueSize     int           `env:"SEND_QUEUE_SIZE,default=64"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	InboundRate       float64       `env:"INBOUND_RATE,default=20"`
	InboundBurst      int           `env:"INBOUND_BURST,default=40"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS,separator=,"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE,default=support"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
}

// PresenceTTL outlives two missed heartbeats so a live user never expires
// between refreshes.
func (s Settings) PresenceTTL() time.Duration {
	return 2*s.HeartbeatInterval + 10*time.Second
}

// trimList drops surrounding whitespace and empty entries left by list
// settings such as "a, b,,".
func trimList(values []string) []string {
	var items []string

	for _, item := range values {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}
