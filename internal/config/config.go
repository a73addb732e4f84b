package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	// DefaultMaxIdle is how long a session may go without a heartbeat
	// before the sweep removes it.
	DefaultMaxIdle = 5 * time.Minute
	// DefaultEditTTL is how long an edit-presence entry lives without a
	// refresh or explicit stop.
	DefaultEditTTL = 5 * time.Second
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	MigrationsURL  string
	SigningKey     []byte
	AllowedOrigins []string
	MaxIdle        time.Duration
	EditTTL        time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		MigrationsURL:  "file://db/migrations",
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		MaxIdle:        DefaultMaxIdle,
		EditTTL:        DefaultEditTTL,
	}, nil
}
