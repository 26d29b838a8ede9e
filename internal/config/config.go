package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendDeepFace = "deepface"
	BackendGRPC     = "grpc"

	DefaultModel    = "Facenet"
	DefaultDetector = "retinaface"
)

// Config is built once at process start and handed to every component.
type Config struct {
	Server   ServerConfig
	Verifier VerifierConfig
	Cache    CacheConfig
	LogLevel string
}

type ServerConfig struct {
	Host            string
	Port            int
	MaxUploadBytes  int64
	MaxImagePixels  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type VerifierConfig struct {
	Backend  string // deepface or grpc
	URL      string // DeepFace REST base URL
	GRPCAddr string
	Model    string
	Detector string
	Timeout  time.Duration
}

type CacheConfig struct {
	RedisAddr string // empty disables the verdict cache
	TTL       time.Duration
}

// Enabled reports whether a verdict cache should be constructed.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := envInt("PORT", 5000)
	if err != nil {
		return nil, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return nil, err
	}
	maxPixels, err := envInt("MAX_IMAGE_PIXELS", 25_000_000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("HOST", "0.0.0.0"),
			Port:           port,
			MaxUploadBytes: int64(maxUpload),
			MaxImagePixels: int64(maxPixels),
		},
		Verifier: VerifierConfig{
			Backend:  strings.ToLower(getEnv("VERIFIER_BACKEND", BackendDeepFace)),
			URL:      getEnv("VERIFIER_URL", "http://localhost:5005"),
			GRPCAddr: getEnv("VERIFIER_GRPC_ADDR", "localhost:50051"),
			Model:    getEnv("VERIFIER_MODEL", DefaultModel),
			Detector: getEnv("VERIFIER_DETECTOR", DefaultDetector),
		},
		Cache: CacheConfig{
			RedisAddr: os.Getenv("REDIS_ADDR"),
		},
		LogLevel: os.Getenv("LOG_LEVEL"),
	}

	for _, d := range []struct {
		key      string
		dst      *time.Duration
		fallback time.Duration
	}{
		{"READ_TIMEOUT", &cfg.Server.ReadTimeout, time.Minute},
		{"WRITE_TIMEOUT", &cfg.Server.WriteTimeout, 10 * time.Minute},
		{"SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout, 15 * time.Second},
		{"VERIFIER_TIMEOUT", &cfg.Verifier.Timeout, 2 * time.Minute},
		{"CACHE_TTL", &cfg.Cache.TTL, 10 * time.Minute},
	} {
		if *d.dst, err = envDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught while parsing.
func (c *Config) Validate() error {
	switch c.Verifier.Backend {
	case BackendDeepFace:
		if c.Verifier.URL == "" {
			return fmt.Errorf("VERIFIER_URL is required for the %s backend", BackendDeepFace)
		}
	case BackendGRPC:
		if c.Verifier.GRPCAddr == "" {
			return fmt.Errorf("VERIFIER_GRPC_ADDR is required for the %s backend", BackendGRPC)
		}
	default:
		return fmt.Errorf("unknown VERIFIER_BACKEND %q", c.Verifier.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Server.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive")
	}
	if c.Verifier.Model == "" || c.Verifier.Detector == "" {
		return fmt.Errorf("VERIFIER_MODEL and VERIFIER_DETECTOR must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
