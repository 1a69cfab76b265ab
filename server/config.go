package server

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/oibchat/oib/pkg/ratelimit"
)

// Config is the chat proxy configuration. Values come from defaults, then an
// optional TOML file, then environment variables, in that order.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string `toml:"listen_addr"`

	// Emit debug logs
	Debug bool `toml:"debug"`

	// Emit JSON log lines instead of console output
	JSONLogs bool `toml:"json_logs"`

	// Per-caller fixed-window rate limit
	RateLimit RateLimitConfig `toml:"rate_limit"`

	// Optional redis URL; when set the rate-limit counters are shared
	// across server instances instead of held in process memory.
	RedisURL string `toml:"redis_url"`

	// Provider credentials, environment-only by design.
	XAIAPIKey  string `toml:"-"`
	GroqAPIKey string `toml:"-"`
}

// RateLimitConfig bounds requests per caller address.
type RateLimitConfig struct {
	Limit         int `toml:"limit"`
	WindowSeconds int `toml:"window_seconds"`
}

// Window returns the configured window as a duration.
func (rc RateLimitConfig) Window() time.Duration {
	return time.Duration(rc.WindowSeconds) * time.Second
}

// DefaultConfig returns the baseline configuration: 10 requests per caller
// per 60 seconds, in-memory counters, listening on :8080.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		RateLimit: RateLimitConfig{
			Limit:         ratelimit.DefaultLimit,
			WindowSeconds: int(ratelimit.DefaultWindow / time.Second),
		},
	}
}

// LoadFile overlays values from a TOML config file.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays credentials and overrides from the environment.
func (c *Config) ApplyEnv() {
	c.XAIAPIKey = os.Getenv("XAI_API_KEY")
	c.GroqAPIKey = os.Getenv("GROQ_API_KEY")

	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("OIB_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}
