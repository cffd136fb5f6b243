package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TASKHUB"

const minSecretBytes = 32

// Config is the process configuration. Keys map to TASKHUB_* variables with
// dots replaced by underscores (auth.access_ttl -> TASKHUB_AUTH_ACCESS_TTL).
type Config struct {
	Env     string      `mapstructure:"env"`
	BaseURL string      `mapstructure:"base_url"`
	HTTP    HTTPConfig  `mapstructure:"http"`
	GRPC    GRPCConfig  `mapstructure:"grpc"`
	Store   StoreConfig `mapstructure:"store"`
	Auth    AuthConfig  `mapstructure:"auth"`
	Mail    MailConfig  `mapstructure:"mail"`
	Log     LogConfig   `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	Origin         string        `mapstructure:"origin"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	RateBurst      int           `mapstructure:"rate_burst"`
	RatePerSec     int           `mapstructure:"rate_per_sec"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	MongoURI      string        `mapstructure:"mongo_uri"`
	MongoDatabase string        `mapstructure:"mongo_database"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	AccessSecret         string        `mapstructure:"access_secret"`
	RefreshSecret        string        `mapstructure:"refresh_secret"`
	AccessTTL            time.Duration `mapstructure:"access_ttl"`
	RefreshTTL           time.Duration `mapstructure:"refresh_ttl"`
	OneTimeTTL           time.Duration `mapstructure:"one_time_ttl"`
	Issuer               string        `mapstructure:"issuer"`
	RequireVerifiedEmail bool          `mapstructure:"require_verified_email"`
	CookieSecure         bool          `mapstructure:"cookie_secure"`
	CookieDomain         string        `mapstructure:"cookie_domain"`
}

type MailConfig struct {
	From string `mapstructure:"from"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Origins splits the configured CORS origin list.
func (c HTTPConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.Origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

var defaults = map[string]any{
	"env":                         "development",
	"base_url":                    "http://localhost:8080",
	"http.addr":                   ":8080",
	"http.origin":                 "http://localhost:5173",
	"http.max_body_bytes":         int64(1 << 20),
	"http.rate_burst":             60,
	"http.rate_per_sec":           30,
	"http.request_timeout":        "15s",
	"grpc.addr":                   ":9090",
	"store.driver":                "memory",
	"store.postgres_dsn":          "",
	"store.mongo_uri":             "",
	"store.mongo_database":        "taskhub",
	"store.timeout":               "5s",
	"auth.access_secret":          "",
	"auth.refresh_secret":         "",
	"auth.access_ttl":             "15m",
	"auth.refresh_ttl":            "240h",
	"auth.one_time_ttl":           "20m",
	"auth.issuer":                 "taskhub",
	"auth.require_verified_email": true,
	"auth.cookie_secure":          false,
	"auth.cookie_domain":          "",
	"mail.from":                   "no-reply@taskhub.local",
	"log.level":                   "info",
	"log.format":                  "json",
}

// Load reads defaults, an optional config file named by TASKHUB_CONFIG and
// the environment, then validates the result.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Production() {
		cfg.Auth.CookieSecure = true
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.Auth.AccessSecret) < minSecretBytes {
		errs = append(errs, fmt.Errorf("auth.access_secret must be at least %d bytes", minSecretBytes))
	}
	if len(c.Auth.RefreshSecret) < minSecretBytes {
		errs = append(errs, fmt.Errorf("auth.refresh_secret must be at least %d bytes", minSecretBytes))
	}
	if c.Auth.AccessSecret != "" && c.Auth.AccessSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("auth.access_secret and auth.refresh_secret must differ"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.OneTimeTTL <= 0 {
		errs = append(errs, errors.New("auth token lifetimes must be positive"))
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		errs = append(errs, errors.New("auth.access_ttl must be shorter than auth.refresh_ttl"))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Store.PostgresDSN) == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	case "mongo":
		if strings.TrimSpace(c.Store.MongoURI) == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.HTTP.RequestTimeout <= 0 || c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("http.request_timeout and store.timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
