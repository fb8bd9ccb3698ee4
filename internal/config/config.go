package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the krafti API and CLI.
type Config struct {
	Addr           string   `env:"ADDR,default=:8080"`
	DBDSN          string   `env:"DB_DSN,required"`
	LogLevel       string   `env:"LOG_LEVEL,default=info"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	NATSURL        string   `env:"NATS_URL"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	RateLimit      int      `env:"RATE_LIMIT,default=100"`

	JWTSecret     string   `env:"JWT_SECRET,required"`
	JWTExpire     Seconds  `env:"JWT_EXPIRE,default=2592000"`
	JWTMax        int      `env:"JWT_MAX,default=5"`
	JWTAlgorithm  string   `env:"JWT_ALGORITHM,default=HS256"`
	JWTAlgorithms []string `env:"JWT_ALGORITHMS,default=HS256,HS384,HS512"`
	AuthCookie    string   `env:"AUTH_COOKIE,default=auth._token.local"`

	PageLimit    int `env:"PAGE_LIMIT,default=20"`
	PageLimitMax int `env:"PAGE_LIMIT_MAX,default=100"`
}

// Seconds is a duration that accepts either a plain number of seconds or a Go duration string.
type Seconds time.Duration

// EnvDecode implements envconfig.Decoder.
func (s *Seconds) EnvDecode(val string) error {
	val = strings.TrimSpace(val)
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid duration %q", val)
	}
	*s = Seconds(d)
	return nil
}

// Duration returns s as a time.Duration.
func (s Seconds) Duration() time.Duration { return time.Duration(s) }

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith returns a Config populated from the given lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET must not be blank")
	}
	if c.JWTExpire.Duration() <= 0 {
		return errors.New("config: JWT_EXPIRE must be positive")
	}
	if c.JWTMax < 1 {
		return errors.New("config: JWT_MAX must be at least 1")
	}
	found := false
	for _, alg := range c.JWTAlgorithms {
		if strings.EqualFold(strings.TrimSpace(alg), c.JWTAlgorithm) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config: JWT_ALGORITHM %s is not listed in JWT_ALGORITHMS", c.JWTAlgorithm)
	}
	if c.PageLimit < 1 || c.PageLimitMax < c.PageLimit {
		return errors.New("config: PAGE_LIMIT must be positive and not above PAGE_LIMIT_MAX")
	}
	return nil
}
