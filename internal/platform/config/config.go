// Package config loads runtime configuration from the environment with an
// optional .env file for local development and secret-reference resolution
// through Cloud Secret Manager.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultGatewayBaseURL      = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	defaultGatewayVersion      = "2.1.0"
	defaultGatewayLocale       = "en"
	defaultSecurityEnvironment = "local"
	defaultOrderEventTopic     = "order-events"
	defaultStockEventTopic     = "stock-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Gateway   GatewayConfig
	Events    EventConfig
	Security  SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for admin sessions.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// GatewayConfig holds the shared payment gateway settings. Merchant code and
// hash secret live on the store document; these values cover the gateway
// endpoint itself plus a fallback secret for stores without one.
type GatewayConfig struct {
	BaseURL            string
	Version            string
	Locale             string
	FallbackHashSecret string
}

// EventConfig names the Pub/Sub topics domain events are published to.
type EventConfig struct {
	ProjectID  string
	OrderTopic string
	StockTopic string
	Enabled    bool
}

// SecurityConfig groups environment metadata.
type SecurityConfig struct {
	Environment string
}

// SecretResolver resolves references to external secrets (secret:// URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports configuration fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config validation failed: missing or invalid fields [" + strings.Join(e.fields, ", ") + "]"
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes a failed secret reference resolution.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loader)

// loader accumulates value sources. Lookup precedence: explicit map, then
// system environment, then the .env file.
type loader struct {
	envFile   string
	overrides map[string]string
	systemEnv bool
	dotEnv    map[string]string
	secrets   SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// WithEnvMap injects an explicit key/value map consulted before the system
// environment.
func WithEnvMap(values map[string]string) Option {
	return func(l *loader) { l.overrides = values }
}

// WithoutSystemEnv disables os.LookupEnv, leaving only injected maps and the
// .env file.
func WithoutSystemEnv() Option {
	return func(l *loader) { l.systemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(l *loader) { l.secrets = resolver }
}

func (l *loader) get(key string) string {
	if value, ok := l.overrides[key]; ok && value != "" {
		return value
	}
	if l.systemEnv {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value
		}
	}
	return l.dotEnv[key]
}

func (l *loader) str(key, fallback string) string {
	if value := l.get(key); value != "" {
		return value
	}
	return fallback
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	if value := l.get(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (l *loader) flag(key string, fallback bool) bool {
	switch strings.ToLower(l.get(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// Load assembles the configuration from defaults, the .env file, environment
// variables and optional secret resolution, then validates it.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	l := loader{envFile: defaultEnvFile, systemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&l)
		}
	}

	dotEnv, err := parseEnvFile(l.envFile)
	if err != nil {
		return Config{}, err
	}
	l.dotEnv = dotEnv

	cfg := Config{
		Server: ServerConfig{
			Port:         l.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  l.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: l.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  l.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       l.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: l.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    l.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: l.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:            l.str("API_GATEWAY_BASE_URL", defaultGatewayBaseURL),
			Version:            l.str("API_GATEWAY_VERSION", defaultGatewayVersion),
			Locale:             l.str("API_GATEWAY_LOCALE", defaultGatewayLocale),
			FallbackHashSecret: l.str("API_GATEWAY_FALLBACK_HASH_SECRET", ""),
		},
		Events: EventConfig{
			ProjectID:  l.str("API_EVENTS_PROJECT_ID", ""),
			OrderTopic: l.str("API_EVENTS_ORDER_TOPIC", defaultOrderEventTopic),
			StockTopic: l.str("API_EVENTS_STOCK_TOPIC", defaultStockEventTopic),
			Enabled:    l.flag("API_EVENTS_ENABLED", false),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(l.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
	}

	// Firestore and Pub/Sub projects default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}

	cfg.Gateway.FallbackHashSecret, err = ResolveSecretValue(ctx, cfg.Gateway.FallbackHashSecret, l.secrets)
	if err != nil {
		return Config{}, err
	}

	var missing []string
	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.Gateway.BaseURL) == "" {
		missing = append(missing, "Gateway.BaseURL")
	}
	if strings.TrimSpace(cfg.Gateway.Version) == "" {
		missing = append(missing, "Gateway.Version")
	}
	if len(missing) > 0 {
		return Config{}, &ValidationError{fields: missing}
	}

	return cfg, nil
}

// ResolveSecretValue resolves the value through the resolver when it is a
// secret reference, returning it unchanged otherwise. Store documents carry
// gateway hash secrets either inline or as secret:// references.
func ResolveSecretValue(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !IsSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

// IsSecretReference reports whether the value points at an external secret.
func IsSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

// parseEnvFile reads KEY=VALUE lines from a dotenv file. A missing file is
// not an error.
func parseEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
