package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultEnvFile = ".env"
	envPrefix      = "STOREFRONT"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Redis       RedisConfig
	PubSub      PubSubConfig
	Cart        CartConfig
	Catalog     CatalogConfig
	Offers      OffersConfig
	Idempotency IdempotencyConfig
	Security    SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string        `default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	IdleTimeout     time.Duration `split_words:"true" default:"120s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"20s"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `default:"info"`
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string `split_words:"true"`
	CredentialsFile string `split_words:"true"`
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID         string `split_words:"true"`
	EmulatorHost      string `split_words:"true"`
	ItemsCollection   string `split_words:"true" default:"items"`
	OffersCollection  string `split_words:"true" default:"offers"`
	SellersCollection string `split_words:"true" default:"sellers"`
}

// RedisConfig points at the cart session store. URL may be a secret reference.
type RedisConfig struct {
	URL          string        `default:"redis://localhost:6379/0"`
	ReadTimeout  time.Duration `split_words:"true" default:"3s"`
	WriteTimeout time.Duration `split_words:"true" default:"3s"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
}

// PubSubConfig controls catalog change notifications.
type PubSubConfig struct {
	ProjectID    string `split_words:"true"`
	EmulatorHost string `split_words:"true"`
	CatalogTopic string `split_words:"true" default:"catalog-events"`
	Enabled      bool   `default:"true"`
}

// CartConfig controls cart session persistence.
type CartConfig struct {
	TTL       time.Duration `default:"72h"`
	KeyPrefix string        `split_words:"true" default:"cart"`
}

// CatalogConfig bounds catalog requests.
type CatalogConfig struct {
	MaxBulkItems int `split_words:"true" default:"500"`
}

// OffersConfig throttles the unauthenticated offer listings per client address.
type OffersConfig struct {
	PublicRatePerMinute int `split_words:"true" default:"120"`
	PublicBurst         int `split_words:"true" default:"30"`
}

// IdempotencyConfig controls replay of create requests carrying an idempotency key.
type IdempotencyConfig struct {
	Header    string        `default:"Idempotency-Key"`
	TTL       time.Duration `default:"24h"`
	KeyPrefix string        `split_words:"true" default:"idem"`
}

// SecurityConfig groups caller authentication settings.
type SecurityConfig struct {
	Environment string `default:"local"`
	SellerClaim string `split_words:"true" default:"sellerId"`
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
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

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile string
	secret  SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// and secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration from defaults, the optional .env file, and STOREFRONT_* environment
// variables. Variables already present in the environment win over the .env file.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		opt(&options)
	}

	if path := strings.TrimSpace(options.envFile); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: unable to read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}
	cfg.Security.Environment = strings.ToLower(strings.TrimSpace(cfg.Security.Environment))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	secretFields := []*string{&cfg.Redis.URL, &cfg.Firebase.CredentialsFile}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !IsSecretReference(value) {
		return value, nil
	}
	normalized := NormalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.Redis.URL) == "" {
		missing = append(missing, "Redis.URL")
	}
	if cfg.PubSub.Enabled && strings.TrimSpace(cfg.PubSub.CatalogTopic) == "" {
		missing = append(missing, "PubSub.CatalogTopic")
	}
	if cfg.Cart.TTL <= 0 {
		missing = append(missing, "Cart.TTL")
	}
	if cfg.Catalog.MaxBulkItems <= 0 {
		missing = append(missing, "Catalog.MaxBulkItems")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" || cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		missing = append(missing, "Log.Level")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// IsSecretReference reports whether value points at Secret Manager rather than holding the secret itself.
func IsSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

// NormalizeSecretReference rewrites sm:// references to the canonical secret:// form.
func NormalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}
