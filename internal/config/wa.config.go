package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"whatsapp-service/pkg/phone"
)

const (
	SenderGRPC = "grpc"
	SenderHTTP = "http"
)

type AppConfig struct {
	HTTPAddr string

	// Agent endpoints: websocket for pairing, gRPC or HTTP for sends.
	AgentWSURL      string
	AgentGRPCAddr   string
	AgentHTTPURL    string
	AgentToken      string
	SenderTransport string

	DefaultCountryCode  string
	DispatchConcurrency int
	SendTimeout         time.Duration
	PairingTimeout      time.Duration
	ReconnectMin        time.Duration
	ReconnectMax        time.Duration

	RedisAddrs   []string
	RedisPass    string
	RedisCluster bool

	JWTSecret string
	JWTIssuer string

	TemplatesFile string
	UseDatabase   bool

	RateLimit       int
	RateLimitWindow time.Duration
	CORSOrigins     []string
}

func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("WhatsApp: No .env file found, relying on system env vars")
	}
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8015"),

		AgentWSURL:      getEnv("AGENT_WS_URL", "ws://localhost:5000/ws"),
		AgentGRPCAddr:   getEnv("AGENT_GRPC_ADDR", "localhost:50051"),
		AgentHTTPURL:    getEnv("AGENT_HTTP_URL", "http://localhost:5000"),
		AgentToken:      getEnv("AGENT_TOKEN", ""),
		SenderTransport: strings.ToLower(getEnv("SENDER_TRANSPORT", SenderGRPC)),

		DefaultCountryCode:  getEnv("DEFAULT_COUNTRY_CODE", "91"),
		DispatchConcurrency: getEnvAsInt("DISPATCH_CONCURRENCY", 1),
		SendTimeout:         getEnvAsDuration("SEND_TIMEOUT", 30*time.Second),
		PairingTimeout:      getEnvAsDuration("PAIRING_TIMEOUT", 30*time.Second),
		ReconnectMin:        getEnvAsDuration("RECONNECT_MIN", time.Second),
		ReconnectMax:        getEnvAsDuration("RECONNECT_MAX", 30*time.Second),

		RedisAddrs:   getEnvAsList("REDIS_ADDR", []string{"redis:6379"}),
		RedisPass:    getEnv("REDIS_PASS", ""),
		RedisCluster: getEnvAsBool("REDIS_CLUSTER", false),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "pxyz-auth"),

		TemplatesFile: getEnv("TEMPLATES_FILE", ""),
		UseDatabase:   getEnvAsBool("USE_DATABASE", true),

		RateLimit:       getEnvAsInt("RATE_LIMIT", 100),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate rejects settings the service cannot start with.
func (c AppConfig) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.AgentWSURL == "" {
		errs = append(errs, errors.New("AGENT_WS_URL is required"))
	}
	switch c.SenderTransport {
	case SenderGRPC:
		if c.AgentGRPCAddr == "" {
			errs = append(errs, errors.New("AGENT_GRPC_ADDR is required for grpc sender"))
		}
	case SenderHTTP:
		if c.AgentHTTPURL == "" {
			errs = append(errs, errors.New("AGENT_HTTP_URL is required for http sender"))
		}
	default:
		errs = append(errs, fmt.Errorf("SENDER_TRANSPORT must be %q or %q, got %q", SenderGRPC, SenderHTTP, c.SenderTransport))
	}
	if err := phone.ValidateCountryCode(c.DefaultCountryCode); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_COUNTRY_CODE: %w", err))
	}
	if c.DispatchConcurrency < 1 {
		errs = append(errs, errors.New("DISPATCH_CONCURRENCY must be at least 1"))
	}
	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		errs = append(errs, errors.New("RECONNECT_MIN must be positive and not above RECONNECT_MAX"))
	}
	if len(c.RedisAddrs) == 0 {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("WhatsApp: invalid int for %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("WhatsApp: invalid duration for %s=%q, using %s", key, v, fallback)
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
