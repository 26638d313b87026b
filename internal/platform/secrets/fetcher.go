// Package secrets resolves secret:// references through Cloud Secret Manager,
// caching resolved values and falling back to a local file when the remote
// service is unreachable or access is denied.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	meterName           = "github.com/atelier-market/api/internal/platform/secrets"
)

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret references against Secret Manager. Resolved values
// are cached for the process lifetime; Invalidate drops a single entry.
type Fetcher struct {
	client    secretManagerClient
	ownClient bool
	logger    *zap.Logger
	projectID string

	mu    sync.RWMutex
	cache map[string]string

	fallbackPath string
	loadFallback func() map[string]string

	latency metric.Float64Histogram
}

type fetcherOptions struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherOptions)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *fetcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProject sets the default project secrets are read from when a reference
// carries no project override.
func WithProject(projectID string) Option {
	return func(o *fetcherOptions) { o.projectID = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback secrets file path. An empty
// path disables the fallback entirely.
func WithFallbackFile(path string) Option {
	return func(o *fetcherOptions) { o.fallbackPath = strings.TrimSpace(path) }
}

// WithMeter injects the OpenTelemetry meter used for fetch latency.
func WithMeter(m metric.Meter) Option {
	return func(o *fetcherOptions) { o.meter = m }
}

// WithSecretManagerClient injects a preconfigured client, mainly for tests.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(o *fetcherOptions) { o.client = client }
}

// WithClientOptions forwards Cloud client options to the Secret Manager
// client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *fetcherOptions) { o.clientOpts = append(o.clientOpts, opts...) }
}

// NewFetcher constructs a Fetcher. A failure to dial Secret Manager is not
// fatal; the fetcher then serves only cached and fallback values.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	options := fetcherOptions{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	f := &Fetcher{
		client:       options.client,
		logger:       options.logger,
		projectID:    options.projectID,
		cache:        make(map[string]string),
		fallbackPath: options.fallbackPath,
	}
	f.loadFallback = sync.OnceValue(f.readFallbackFile)

	if f.client == nil {
		client, err := secretmanager.NewClient(ctx, options.clientOpts...)
		if err != nil {
			f.logger.Warn("secret manager unavailable, using fallback values only", zap.Error(err))
		} else {
			f.client = client
			f.ownClient = true
		}
	}

	meter := options.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	latency, err := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret fetch attempts"),
	)
	if err != nil {
		f.logger.Warn("secret fetch latency metric unavailable", zap.Error(err))
	} else {
		f.latency = latency
	}

	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value behind a secret:// reference. Values come from
// the cache, then Secret Manager, then the local fallback file.
func (f *Fetcher) Resolve(ctx context.Context, rawRef string) (string, error) {
	started := time.Now()
	ref, err := parseReference(rawRef)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, hit := f.cache[ref.cacheKey()]
	f.mu.RUnlock()
	if hit {
		f.observe(ctx, started, "cache")
		return cached, nil
	}

	if value, err := f.resolveRemote(ctx, ref); err == nil {
		f.store(ref, value)
		f.observe(ctx, started, "remote")
		return value, nil
	} else if !errors.Is(err, errTryFallback) {
		f.observe(ctx, started, "error")
		return "", err
	}

	if value, ok := f.loadFallback()[ref.name]; ok {
		f.store(ref, value)
		f.observe(ctx, started, "fallback")
		return value, nil
	}

	f.observe(ctx, started, "error")
	return "", fmt.Errorf("secrets: no value available for %s", ref)
}

// Invalidate drops the cached value for the reference, forcing the next
// Resolve to refetch.
func (f *Fetcher) Invalidate(rawRef string) {
	ref, err := parseReference(rawRef)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, ref.cacheKey())
	f.mu.Unlock()
}

func (f *Fetcher) store(ref reference, value string) {
	f.mu.Lock()
	f.cache[ref.cacheKey()] = value
	f.mu.Unlock()
}

// errTryFallback marks remote failures the local fallback file may cover.
var errTryFallback = errors.New("secrets: remote fetch unavailable")

func (f *Fetcher) resolveRemote(ctx context.Context, ref reference) (string, error) {
	project := ref.project
	if project == "" {
		project = f.projectID
	}
	if f.client == nil || project == "" {
		return "", errTryFallback
	}

	resource := ref.resourceName(project)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		switch status.Code(err) {
		case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
			f.logger.Debug("secret fetch failed, trying fallback file",
				zap.String("resource", resource), zap.Error(err))
			return "", errTryFallback
		}
		return "", fmt.Errorf("secrets: access %s: %w", resource, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: empty payload for %s", resource)
	}
	return string(resp.GetPayload().GetData()), nil
}

// readFallbackFile parses NAME=VALUE pairs from the local secrets file, keyed
// by secret name. Runs once per process.
func (f *Fetcher) readFallbackFile() map[string]string {
	values := make(map[string]string)
	if f.fallbackPath == "" {
		return values
	}

	raw, err := os.ReadFile(f.fallbackPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("unable to read fallback secrets file",
				zap.String("path", f.fallbackPath), zap.Error(err))
		}
		return values
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if ref, err := parseReference(key); err == nil {
			values[ref.name] = strings.TrimSpace(value)
		}
	}
	return values
}

func (f *Fetcher) observe(ctx context.Context, started time.Time, source string) {
	if f.latency == nil {
		return
	}
	elapsed := float64(time.Since(started)) / float64(time.Millisecond)
	f.latency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("source", source)))
}

// reference is a parsed secret:// URI. Version and project come from query
// parameters and default to "latest" and the fetcher's project.
type reference struct {
	name    string
	version string
	project string
}

func (r reference) String() string {
	return "secret://" + r.name
}

func (r reference) cacheKey() string {
	return r.name + "\x00" + r.project + "\x00" + r.version
}

func (r reference) resourceName(project string) string {
	version := r.version
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.name, version)
}

func parseReference(raw string) (reference, error) {
	trimmed := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		trimmed = "secret://" + rest
	}
	rest, ok := strings.CutPrefix(trimmed, "secret://")
	if !ok {
		return reference{}, fmt.Errorf("secrets: unsupported reference %q", raw)
	}

	name, query, _ := strings.Cut(rest, "?")
	name = strings.Trim(name, "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	return reference{
		name:    name,
		version: strings.TrimSpace(params.Get("version")),
		project: strings.TrimSpace(params.Get("project")),
	}, nil
}
