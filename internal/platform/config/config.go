package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultRequestTimeout   = 10 * time.Second
	defaultRateLimitDefault = 120
	defaultCacheBackend     = CacheBackendMemory
	defaultCacheTTL         = 10 * time.Minute
	defaultCurrency         = "EUR"
	defaultLocale           = "de-DE"
	defaultMaxBodyBytes     = 256 * 1024
	defaultEnvironment      = "local"
)

// Cache backends accepted by API_BREAKDOWN_CACHE_BACKEND.
const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Redis       RedisConfig
	Breakdown   BreakdownConfig
	RateLimits  RateLimitConfig
	Observation ObservabilityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// FirestoreConfig stores database parameters. An empty ProjectID selects the
// in-memory organizer settings repository.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// RedisConfig points at the breakdown cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BreakdownConfig tunes the breakdown service.
type BreakdownConfig struct {
	CacheBackend    string
	CacheTTL        time.Duration
	DefaultCurrency string
	DefaultLocale   string
	// OrganizersFile seeds the in-memory organizer repository.
	OrganizersFile string
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	DefaultPerMinute int
}

// ObservabilityConfig identifies the deployment in logs and traces.
type ObservabilityConfig struct {
	TraceProjectID string
	Environment    string
	Version        string
	CommitSHA      string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile        string
	envMap         map[string]string
	useSystemEnv   bool
	secretResolver SecretResolver
}

// SecretResolver turns secret:// references into plaintext values.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

const secretScheme = "secret://"

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver resolves secret:// references in sensitive settings such as API_REDIS_PASSWORD.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secretResolver = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides
// and environment variables.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			MaxBodyBytes:   int64(intWithDefault(lookup, "API_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
		},
		Breakdown: BreakdownConfig{
			CacheBackend:    strings.ToLower(stringWithDefault(lookup, "API_BREAKDOWN_CACHE_BACKEND", defaultCacheBackend)),
			CacheTTL:        durationWithDefault(lookup, "API_BREAKDOWN_CACHE_TTL", defaultCacheTTL),
			DefaultCurrency: strings.ToUpper(stringWithDefault(lookup, "API_BREAKDOWN_DEFAULT_CURRENCY", defaultCurrency)),
			DefaultLocale:   stringWithDefault(lookup, "API_BREAKDOWN_DEFAULT_LOCALE", defaultLocale),
			OrganizersFile:  stringWithDefault(lookup, "API_BREAKDOWN_ORGANIZERS_FILE", ""),
		},
		RateLimits: RateLimitConfig{
			DefaultPerMinute: intWithDefault(lookup, "API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
		},
		Observation: ObservabilityConfig{
			TraceProjectID: stringWithDefault(lookup, "API_TRACE_PROJECT_ID", ""),
			Environment:    strings.ToLower(stringWithDefault(lookup, "API_ENVIRONMENT", defaultEnvironment)),
			Version:        stringWithDefault(lookup, "API_VERSION", ""),
			CommitSHA:      stringWithDefault(lookup, "API_COMMIT_SHA", ""),
		},
	}

	// Trace project defaults to the Firestore project when unspecified.
	if cfg.Observation.TraceProjectID == "" {
		cfg.Observation.TraceProjectID = cfg.Firestore.ProjectID
	}

	if err := resolveSecrets(ctx, options.secretResolver, &cfg); err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecrets(ctx context.Context, resolver SecretResolver, cfg *Config) error {
	targets := map[string]*string{
		"API_REDIS_PASSWORD": &cfg.Redis.Password,
	}
	for key, target := range targets {
		ref := strings.TrimSpace(*target)
		if !strings.HasPrefix(ref, secretScheme) {
			continue
		}
		if resolver == nil {
			return fmt.Errorf("config: %s references a secret but no resolver is configured", key)
		}
		value, err := resolver.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", key, err)
		}
		*target = value
	}
	return nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		missing = append(missing, "Server.MaxBodyBytes")
	}
	switch cfg.Breakdown.CacheBackend {
	case CacheBackendNone, CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			missing = append(missing, "Redis.Addr")
		}
	default:
		missing = append(missing, "Breakdown.CacheBackend")
	}
	if cfg.Breakdown.CacheTTL < 0 {
		missing = append(missing, "Breakdown.CacheTTL")
	}
	if _, err := currency.ParseISO(cfg.Breakdown.DefaultCurrency); err != nil {
		missing = append(missing, "Breakdown.DefaultCurrency")
	}
	if _, err := language.Parse(cfg.Breakdown.DefaultLocale); err != nil {
		missing = append(missing, "Breakdown.DefaultLocale")
	}
	if cfg.RateLimits.DefaultPerMinute <= 0 {
		missing = append(missing, "RateLimits.DefaultPerMinute")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
