package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CANDLE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CANDLE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Session     SessionConfig
	Telegram    TelegramConfig
	NovaPoshta  NovaPoshtaConfig
	SendGrid    SendGridConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// RedisConfig points at the session and cache store.
type RedisConfig struct {
	URL string `usage:"Redis URL (CANDLE_REDIS_URL or REDIS_URL)"`
}

// SessionConfig describes the visitor session cookie.
type SessionConfig struct {
	CookieName string        `default:"sessionid" usage:"Session cookie name" flag:"session-cookie"`
	Secure     bool          `default:"false" usage:"Send the session cookie over HTTPS only" flag:"session-secure"`
	TTL        time.Duration `default:"336h" usage:"Idle session lifetime" flag:"session-ttl"`
}

// TelegramConfig configures operator notifications through a bot.
type TelegramConfig struct {
	Token   string        `usage:"Bot token; notifications are disabled when empty"`
	ChatID  string        `usage:"Chat that receives new orders" flag:"telegram-chat-id"`
	BaseURL string        `default:"https://api.telegram.org" usage:"Bot API endpoint" flag:"telegram-base-url"`
	Timeout time.Duration `default:"10s" usage:"Bot API request timeout"`
}

// NovaPoshtaConfig configures the warehouse lookup.
type NovaPoshtaConfig struct {
	APIKey   string        `usage:"Nova Poshta API key" flag:"nova-poshta-api-key"`
	URL      string        `default:"https://api.novaposhta.ua/v2.0/json/" usage:"Nova Poshta API endpoint"`
	Timeout  time.Duration `default:"10s" usage:"Nova Poshta request timeout"`
	CacheTTL time.Duration `default:"6h" usage:"How long warehouse lists stay cached" flag:"nova-poshta-cache-ttl"`
}

// SendGridConfig configures the operator e-mail copy of each order.
type SendGridConfig struct {
	APIKey    string `usage:"SendGrid API key; e-mail is disabled when empty" flag:"sendgrid-api-key"`
	FromEmail string `usage:"Sender address" flag:"sendgrid-from"`
	FromName  string `default:"Candle Shop" usage:"Sender name"`
	To        string `usage:"Operator address"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CANDLE",
		Files:     []string{"config.yaml", "/etc/candle/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CANDLE_DATABASE_URL or DATABASE_URL")
	}
	if c.Redis.URL == "" {
		return errors.New("redis URL is required: set CANDLE_REDIS_URL or REDIS_URL")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CANDLE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
