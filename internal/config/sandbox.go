package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// SandboxConfig holds settings for the local partner API sandbox
type SandboxConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Clients maps partner_client_id to base64url shared key
	Clients     map[string]string
	AdminSecret string
	MaxSkew     time.Duration
	// RedisURL selects the Redis nonce store; empty keeps nonces in memory
	RedisURL string

	LogLevel  string
	LogFormat string
}

// LoadSandbox loads sandbox settings from the environment with defaults.
// SANDBOX_CLIENTS is a comma separated list of id:secret pairs.
func LoadSandbox() (*SandboxConfig, error) {
	clients, err := ParseClients(strings.Split(getEnv("SANDBOX_CLIENTS", ""), ","))
	if err != nil {
		return nil, err
	}
	maxSkew, err := time.ParseDuration(getEnv("SANDBOX_MAX_SKEW", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SANDBOX_MAX_SKEW: %w", err)
	}

	return &SandboxConfig{
		Addr:         getEnv("SANDBOX_ADDR", ":8080"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Clients:      clients,
		AdminSecret:  getEnv("SANDBOX_ADMIN_SECRET", ""),
		MaxSkew:      maxSkew,
		RedisURL:     getEnv("SANDBOX_REDIS_URL", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}, nil
}

// ParseClients parses id:secret pairs. Blank entries are skipped.
func ParseClients(pairs []string) (map[string]string, error) {
	clients := map[string]string{}
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, secret, ok := strings.Cut(pair, ":")
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("invalid client %q (want id:secret)", pair)
		}
		clients[id] = secret
	}
	return clients, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
