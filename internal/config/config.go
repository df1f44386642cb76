// Package config loads the server settings from defaults, an optional YAML file, an
// optional .env file and environment variables (in increasing order of precedence).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Store kinds
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type (
	Config struct {
		Addr          string          `yaml:"addr"`
		Path          string          `yaml:"path"`
		Store         string          `yaml:"store"`
		Introspection bool            `yaml:"introspection"`
		Mongo         MongoConfig     `yaml:"mongo"`
		Auth          AuthConfig      `yaml:"auth"`
		Events        EventsConfig    `yaml:"events"`
		Redis         RedisConfig     `yaml:"redis"`
		WebSocket     WebSocketConfig `yaml:"websocket"`
		HTTP          HTTPConfig      `yaml:"http"`
		Log           LogConfig       `yaml:"log"`
		Tracing       TracingConfig   `yaml:"tracing"`
	}

	MongoConfig struct {
		URI      string        `yaml:"uri"`
		Database string        `yaml:"database"`
		Timeout  time.Duration `yaml:"timeout"`
	}

	AuthConfig struct {
		Secret          string        `yaml:"secret"`
		TokenLifetime   time.Duration `yaml:"token_lifetime"` // zero for tokens that never expire
		DefaultPassword string        `yaml:"default_password"`
		HashCost        int           `yaml:"hash_cost"` // bcrypt cost (zero for the bcrypt default)
	}

	EventsConfig struct {
		Buffer int `yaml:"buffer"` // events queued per subscriber
	}

	// RedisConfig enables the cross-process event relay when Addr is set
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	}

	WebSocketConfig struct {
		InitialTimeout time.Duration `yaml:"initial_timeout"`
		PingFrequency  time.Duration `yaml:"ping_frequency"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
	}

	HTTPConfig struct {
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
		IdleTimeout       time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	}

	LogConfig struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "json" or "console"
	}

	TracingConfig struct {
		Enabled     bool   `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"` // OTLP/HTTP collector host:port
		ServiceName string `yaml:"service_name"`
	}
)

// Default returns the settings used when nothing else is specified
func Default() *Config {
	return &Config{
		Addr:          ":4000",
		Path:          "/graphql",
		Store:         StoreMongo,
		Introspection: true,
		Mongo:         MongoConfig{Database: "library", Timeout: 10 * time.Second},
		Auth:          AuthConfig{DefaultPassword: "secret"},
		Events:        EventsConfig{Buffer: 16},
		Redis:         RedisConfig{Channel: "libraryql:BOOK_ADDED"},
		WebSocket: WebSocketConfig{
			InitialTimeout: 10 * time.Second,
			PingFrequency:  20 * time.Second,
			PongTimeout:    5 * time.Second,
		},
		HTTP: HTTPConfig{
			ReadHeaderTimeout: 10 * time.Second,
			RequestTimeout:    30 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   5 * time.Second,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{ServiceName: "libraryql"},
	}
}

// Load reads the YAML file (if path is not empty) and .env in the working directory (if
// present) then applies environment variables.  The result is validated.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w reading config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w parsing config file %s", err, path)
		}
	}

	// values in the real environment take precedence over .env
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w reading %s", err, envFile)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings with environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	vars := map[string]*string{
		"MONGODB_URI":                 &c.Mongo.URI,
		"MONGODB_DATABASE":            &c.Mongo.Database,
		"JWT_SECRET":                  &c.Auth.Secret,
		"LIBRARY_STORE":               &c.Store,
		"LIBRARY_DEFAULT_PASSWORD":    &c.Auth.DefaultPassword,
		"REDIS_ADDR":                  &c.Redis.Addr,
		"REDIS_PASSWORD":              &c.Redis.Password,
		"LOG_LEVEL":                   &c.Log.Level,
		"LOG_FORMAT":                  &c.Log.Format,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &c.Tracing.Endpoint,
	}
	for key, p := range vars {
		if v, ok := lookup(key); ok {
			*p = v
		}
	}

	if port, ok := lookup("PORT"); ok {
		c.Addr = ":" + port
	}
	if addr, ok := lookup("LIBRARY_ADDR"); ok {
		c.Addr = addr
	}
	if v, ok := lookup("OTEL_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTEL_ENABLED: %q is not a boolean", v)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

// Validate checks that the settings are usable
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("a JWT secret is required (JWT_SECRET)"))
	}
	switch c.Store {
	case StoreMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("a MongoDB URI is required (MONGODB_URI) for the mongo store"))
		}
		if c.Mongo.Database == "" {
			errs = append(errs, errors.New("a MongoDB database name is required"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (use %q or %q)", c.Store, StoreMongo, StoreMemory))
	}
	if c.Path == "" || c.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("path %q must start with /", c.Path))
	}
	if c.Events.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("events buffer must be positive (is %d)", c.Events.Buffer))
	}
	for name, d := range map[string]time.Duration{
		"mongo.timeout":             c.Mongo.Timeout,
		"auth.token_lifetime":       c.Auth.TokenLifetime,
		"websocket.initial_timeout": c.WebSocket.InitialTimeout,
		"websocket.ping_frequency":  c.WebSocket.PingFrequency,
		"websocket.pong_timeout":    c.WebSocket.PongTimeout,
		"http.read_header_timeout":  c.HTTP.ReadHeaderTimeout,
		"http.request_timeout":      c.HTTP.RequestTimeout,
		"http.idle_timeout":         c.HTTP.IdleTimeout,
		"http.shutdown_timeout":     c.HTTP.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative (is %v)", name, d))
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log format %q must be json or console", c.Log.Format))
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		errs = append(errs, errors.New("tracing needs a service name"))
	}
	return errors.Join(errs...)
}
