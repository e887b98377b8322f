package r2up

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SessionLedger persists multipart upload sessions so that sessions the
// application never completed can be found and aborted later.
// Implementations must be safe for concurrent use.
//
// The ledger is optional supporting infrastructure: the Service treats a
// nil ledger as "don't record" and a ledger write failure never fails the
// upload operation that triggered it.
type SessionLedger interface {
	// Record stores a new session in state SessionCreated.
	Record(ctx context.Context, session UploadSession) error

	// SetState transitions the session identified by uploadID.
	// Returns ErrNotFound if no such session exists.
	SetState(ctx context.Context, uploadID string, state SessionState) error

	// ListStale returns up to limit sessions still in SessionCreated whose
	// creation time is before cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]UploadSession, error)
}

const (
	// DefaultKeyPrefix is the leading segment of derived object keys.
	DefaultKeyPrefix = "uploads"

	// DefaultPartURLTTL is how long presigned part URLs stay valid.
	DefaultPartURLTTL = 30 * time.Minute

	// DefaultProxyPathPrefix is the same-origin path the http package
	// serves objects under when no public base URL is usable.
	DefaultProxyPathPrefix = "/uploads/object"

	defaultRequestTimeout = 30 * time.Second
)

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	Credentials Credentials

	// PublicBaseURL is the operator-configured public URL objects are
	// served from, e.g. a CDN domain in front of the bucket. Ignored when
	// its host is a placeholder or local-development pattern.
	PublicBaseURL string

	// SiteOrigin is the application's primary origin, included in the
	// bucket's allowed CORS origins.
	SiteOrigin string

	// Env selects the operating mode; non-production modes add a wildcard
	// CORS origin.
	Env EnvMode

	// KeyPrefix overrides DefaultKeyPrefix for derived object keys.
	KeyPrefix string

	// PartURLTTL overrides DefaultPartURLTTL.
	PartURLTTL time.Duration

	// DisableProxyFallback skips the same-origin proxy path when resolving
	// public URLs, falling through to the direct vendor-hosted URL.
	DisableProxyFallback bool

	HTTPClient *http.Client
	Ledger     SessionLedger
	Logger     *slog.Logger
}

// Service is the subsystem boundary the application layer calls into. All
// store traffic it generates itself is header-signed; multipart part
// uploads happen out-of-band via the presigned URLs it hands out.
type Service struct {
	creds  Credentials
	cfg    ServiceConfig
	signer *Signer
	client *http.Client
	cors   *CORSProvisioner
	ledger SessionLedger
	logger *slog.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	creds := cfg.Credentials.withDefaults()
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("new service: invalid env mode: %s", cfg.Env)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.PartURLTTL <= 0 {
		cfg.PartURLTTL = DefaultPartURLTTL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		creds:  creds,
		cfg:    cfg,
		signer: NewSigner(creds),
		client: client,
		ledger: cfg.Ledger,
		logger: logger,
	}
	s.cors = NewCORSProvisioner(s.applyCORS, logger)
	return s, nil
}

// Signer exposes the service's request signer for callers that need raw
// presigned URLs beyond the multipart flow.
func (s *Service) Signer() *Signer {
	return s.signer
}

// do executes one header-signed request against the store. A non-2xx
// response is drained into a TransportError; the caller owns resp.Body on
// success.
func (s *Service) do(ctx context.Context, op, method, key string, query url.Values, headers map[string]string, body []byte) (*http.Response, error) {
	rawURL := s.creds.baseURL() + s.signer.ResourcePath(key)
	if len(query) > 0 {
		// Send the exact byte form the canonical query was hashed over.
		rawURL += "?" + buildCanonicalQueryString(query)
	}

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.ContentLength = int64(len(body))
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	s.signer.SignRequest(req, body)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, newTransportError(op, resp)
	}
	return resp, nil
}

// EnsureCORS runs the one-time CORS provisioning step. Upload flows call
// this lazily; exposing it lets operators provision eagerly at startup.
func (s *Service) EnsureCORS(ctx context.Context) {
	s.cors.Ensure(ctx)
}

func (s *Service) applyCORS(ctx context.Context) error {
	origins := ComputeAllowedOrigins(s.cfg.SiteOrigin, s.publicBaseOrigin(), s.cfg.Env)

	body, err := corsRuleBody(origins)
	if err != nil {
		return fmt.Errorf("marshal cors rules: %w", err)
	}

	resp, err := s.do(ctx, "configure cors", http.MethodPut, "",
		url.Values{"cors": {""}},
		map[string]string{"Content-Type": "application/xml"},
		body,
	)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	s.logger.Debug("applied bucket cors rules", "origins", origins)
	return nil
}

// publicBaseOrigin returns the origin of the configured public base URL, or
// "" when the base is absent or a placeholder.
func (s *Service) publicBaseOrigin() string {
	u, ok := s.usablePublicBase()
	if !ok {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// FetchObject retrieves an object through a header-signed GET. The caller
// must close the returned body. A 404 from the store surfaces as
// ErrNotFound.
func (s *Service) FetchObject(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if !IsValidKey(key) {
		return nil, ObjectInfo{}, fmt.Errorf("fetch object %q: %w", key, ErrInvalidInput)
	}

	resp, err := s.do(ctx, "fetch object", http.MethodGet, key, nil, nil, nil)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return nil, ObjectInfo{}, fmt.Errorf("fetch object %s: %w", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, err
	}

	info := ObjectInfo{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		ETag:          strings.Trim(resp.Header.Get("ETag"), `"`),
	}
	return resp.Body, info, nil
}
