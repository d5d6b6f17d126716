package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App holds the runtime configuration. Values come from defaults, then the
// optional YAML file named by PRESENCE_CONFIG, then environment variables.
type App struct {
	Env             string        `yaml:"env"`
	HTTPPort        string        `yaml:"http_port"`
	DataCSV         string        `yaml:"data_csv"`
	DataXML         string        `yaml:"data_xml"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RefreshBackend  string        `yaml:"refresh_backend"` // memory|redis
	RedisAddr       string        `yaml:"redis_addr"`
	RefreshChannel  string        `yaml:"refresh_channel"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	WatchInterval   time.Duration `yaml:"watch_interval"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"` // text|json
}

// Defaults returns the configuration used when nothing is set.
func Defaults() App {
	return App{
		Env:             "dev",
		HTTPPort:        "8081",
		DataCSV:         "runtime/data/sample_data.csv",
		DataXML:         "runtime/data/users.xml",
		CacheTTL:        10 * time.Minute,
		RefreshBackend:  "memory",
		RedisAddr:       "localhost:6379",
		RefreshChannel:  "presence:refresh",
		RateLimitPerMin: 120,
		WatchInterval:   30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads .env (if present), the YAML file named by PRESENCE_CONFIG (if
// set), and the environment.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return App{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Defaults()
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return App{}, err
		}
	}
	cfg.mergeEnv()
	if err := cfg.Validate(); err != nil {
		return App{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *App) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return nil
}

func (c *App) mergeEnv() {
	c.Env = getEnv("APP_ENV", c.Env)
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.DataCSV = getEnv("DATA_CSV", c.DataCSV)
	c.DataXML = getEnv("DATA_XML", c.DataXML)
	c.CacheTTL = durationEnv("CACHE_TTL", c.CacheTTL)
	c.RefreshBackend = getEnv("REFRESH_BACKEND", c.RefreshBackend)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RefreshChannel = getEnv("REFRESH_CHANNEL", c.RefreshChannel)
	c.RateLimitPerMin = intEnv("RATE_LIMIT_PER_MIN", c.RateLimitPerMin)
	c.WatchInterval = durationEnv("WATCH_INTERVAL", c.WatchInterval)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate rejects unusable values and fills blanks with defaults.
func (c *App) Validate() error {
	d := Defaults()
	if c.HTTPPort == "" {
		c.HTTPPort = d.HTTPPort
	}
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		return fmt.Errorf("HTTP_PORT must be numeric, got %q", c.HTTPPort)
	}
	if c.DataCSV == "" || c.DataXML == "" {
		return errors.New("DATA_CSV and DATA_XML are required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0, got %s", c.CacheTTL)
	}
	c.RefreshBackend = strings.ToLower(strings.TrimSpace(c.RefreshBackend))
	switch c.RefreshBackend {
	case "":
		c.RefreshBackend = d.RefreshBackend
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported refresh backend: %s", c.RefreshBackend)
	}
	if c.RefreshChannel == "" {
		c.RefreshChannel = d.RefreshChannel
	}
	if c.RateLimitPerMin < 0 {
		return errors.New("RATE_LIMIT_PER_MIN must be >= 0")
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = d.WatchInterval
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	return nil
}

// Production reports whether the app runs in a production environment.
func (c App) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c App) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	var h slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With(slog.String("app", "presence"), slog.String("env", c.Env))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			slog.Warn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			slog.Warn("invalid int, using fallback", "key", key, "fallback", fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}
