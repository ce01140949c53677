// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkNATS  = "nats"
)

type Config struct {
	App      AppConfig      `koanf:"app"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Cookie   CookieConfig   `koanf:"cookie"`
	Password PasswordConfig `koanf:"password"`
	Admin    AdminConfig    `koanf:"admin"`
	Events   EventsConfig   `koanf:"events"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	CORS     CORSConfig     `koanf:"cors"`
	Log      LogConfig      `koanf:"log"`
	Otel     OtelConfig     `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig drives token signing. TTLs are in minutes to match the
// ACCESS_TOKEN_EXPIRE_MINUTES / REFRESH_TOKEN_EXPIRE_MINUTES variables.
type AuthConfig struct {
	SecretKey                 string `koanf:"secret_key"`
	Algorithm                 string `koanf:"algorithm"`
	AccessTokenExpireMinutes  int    `koanf:"access_token_expire_minutes"`
	RefreshTokenExpireMinutes int    `koanf:"refresh_token_expire_minutes"`
	RevokeFamilyOnReuse       bool   `koanf:"revoke_family_on_reuse"`
}

func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenExpireMinutes) * time.Minute
}

type CookieConfig struct {
	Name     string `koanf:"name"`
	Path     string `koanf:"path"`
	Domain   string `koanf:"domain"`
	Secure   bool   `koanf:"secure"`
	SameSite string `koanf:"same_site"`
}

type PasswordConfig struct {
	Memory  uint32 `koanf:"memory"`
	Time    uint32 `koanf:"time"`
	Threads uint8  `koanf:"threads"`
	KeyLen  uint32 `koanf:"key_len"`
	SaltLen uint32 `koanf:"salt_len"`
}

type AdminConfig struct {
	Name     string `koanf:"name"`
	Password string `koanf:"password"`
}

func (a AdminConfig) Enabled() bool {
	return a.Name != "" && a.Password != ""
}

type EventsConfig struct {
	Sinks          []string      `koanf:"sinks"`
	RedisStream    string        `koanf:"redis_stream"`
	RedisMaxLen    int64         `koanf:"redis_max_len"`
	NATSURL        string        `koanf:"nats_url"`
	NATSSubject    string        `koanf:"nats_subject"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

func (e EventsConfig) Has(sink string) bool {
	return slices.Contains(e.Sinks, sink)
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load builds a fresh Config from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "accountd",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8000,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.drain_delay":      "5s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 2,

		"auth.algorithm":                    "HS256",
		"auth.access_token_expire_minutes":  15,
		"auth.refresh_token_expire_minutes": 10080,
		"auth.revoke_family_on_reuse":       false,

		"cookie.name":      "refresh_token",
		"cookie.path":      "/",
		"cookie.secure":    false,
		"cookie.same_site": "lax",

		"password.memory":   64 * 1024,
		"password.time":     1,
		"password.threads":  4,
		"password.key_len":  32,
		"password.salt_len": 16,

		"events.sinks":           []string{SinkLog},
		"events.redis_stream":    "accountd:auth-events",
		"events.redis_max_len":   10000,
		"events.nats_subject":    "accountd.auth.events",
		"events.publish_timeout": "2s",

		"metrics.enabled":   true,
		"metrics.path":      "/metrics",
		"metrics.namespace": "accountd",

		"cors.allowed_origins": []string{"http://localhost:5173"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "accountd",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                 "database.url",
	"REDIS_URL":                    "redis.url",
	"ENVIRONMENT":                  "app.environment",
	"HOST":                         "server.host",
	"PORT":                         "server.port",
	"LOG_LEVEL":                    "log.level",
	"LOG_FORMAT":                   "log.format",
	"SECRET_KEY":                   "auth.secret_key",
	"ALGORITHM":                    "auth.algorithm",
	"ACCESS_TOKEN_EXPIRE_MINUTES":  "auth.access_token_expire_minutes",
	"REFRESH_TOKEN_EXPIRE_MINUTES": "auth.refresh_token_expire_minutes",
	"REVOKE_FAMILY_ON_REUSE":       "auth.revoke_family_on_reuse",
	"COOKIE_SECURE":                "cookie.secure",
	"COOKIE_DOMAIN":                "cookie.domain",
	"ADMIN_NAME":                   "admin.name",
	"ADMIN_PASSWORD":               "admin.password",
	"NATS_URL":                     "events.nats_url",
	"METRICS_ENABLED":              "metrics.enabled",
	"OTEL_ENDPOINT":                "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "otel.endpoint",
	"OTEL_SERVICE_NAME":            "otel.service_name",
	"OTEL_ENABLED":                 "otel.enabled",
	"OTEL_INSECURE":                "otel.insecure",
	"OTEL_SAMPLE_RATE":             "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

var supportedAlgorithms = []string{"HS256", "HS384", "HS512"}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if c.Auth.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}

	if !slices.Contains(supportedAlgorithms, c.Auth.Algorithm) {
		return fmt.Errorf(
			"ALGORITHM %q is not supported (want one of %v)",
			c.Auth.Algorithm,
			supportedAlgorithms,
		)
	}

	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}

	if c.Auth.RefreshTokenExpireMinutes < c.Auth.AccessTokenExpireMinutes {
		return errors.New(
			"REFRESH_TOKEN_EXPIRE_MINUTES must not be shorter than the access token lifetime",
		)
	}

	switch c.Cookie.SameSite {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("cookie.same_site %q is not supported", c.Cookie.SameSite)
	}

	if c.Cookie.SameSite == "none" && !c.Cookie.Secure {
		return errors.New("cookie.same_site=none requires cookie.secure")
	}

	for _, sink := range c.Events.Sinks {
		switch sink {
		case SinkLog, SinkRedis, SinkNATS:
		default:
			return fmt.Errorf("unknown event sink %q", sink)
		}
	}

	if c.Events.Has(SinkRedis) && !c.Redis.Enabled() {
		return errors.New("REDIS_URL is required when the redis event sink is enabled")
	}

	if c.Events.Has(SinkNATS) && c.Events.NATSURL == "" {
		return errors.New("NATS_URL is required when the nats event sink is enabled")
	}

	if c.CORS.AllowCredentials && slices.Contains(c.CORS.AllowedOrigins, "*") {
		return errors.New(
			"CORS wildcard '*' cannot be used with AllowCredentials",
		)
	}

	if c.IsProduction() {
		if c.Otel.Enabled && c.Otel.Insecure {
			return errors.New("OTEL_INSECURE must be false in production")
		}
		if !c.Cookie.Secure {
			return errors.New("COOKIE_SECURE must be true in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return errors.New("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return errors.New("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
