package r2up

import (
	"context"
	"encoding/xml"
	"log/slog"
	"sync"
)

// CORSProvisioner pushes the bucket's CORS configuration to the store at
// most once per process. Concurrent callers coalesce onto a single
// in-flight attempt; a failed attempt is logged, swallowed and retried on
// the next call. Provisioning is best-effort bootstrapping and never blocks
// an upload flow with its error.
//
// The zero value is not usable; construct with NewCORSProvisioner and
// inject it so tests can substitute a fresh instance per case.
type CORSProvisioner struct {
	apply  func(ctx context.Context) error
	logger *slog.Logger

	mu         sync.Mutex
	configured bool
	inflight   chan struct{}
}

// NewCORSProvisioner creates a provisioner around the given apply function,
// which performs the actual PUT ?cors call.
func NewCORSProvisioner(apply func(ctx context.Context) error, logger *slog.Logger) *CORSProvisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CORSProvisioner{
		apply:  apply,
		logger: logger,
	}
}

// Ensure makes sure one provisioning attempt has succeeded. The first
// caller runs the attempt; concurrent callers wait for that same attempt
// instead of issuing duplicate configuration calls. Waiting stops early if
// ctx is cancelled.
func (p *CORSProvisioner) Ensure(ctx context.Context) {
	p.mu.Lock()
	if p.configured {
		p.mu.Unlock()
		return
	}
	if p.inflight != nil {
		done := p.inflight
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	p.inflight = done
	p.mu.Unlock()

	err := p.apply(ctx)

	p.mu.Lock()
	if err == nil {
		p.configured = true
	}
	p.inflight = nil
	p.mu.Unlock()
	close(done)

	if err != nil {
		p.logger.Warn("bucket cors provisioning failed", "err", err)
	} else {
		p.logger.Info("bucket cors configured")
	}
}

// Configured reports whether a provisioning attempt has succeeded.
func (p *CORSProvisioner) Configured() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configured
}

// ComputeAllowedOrigins collects the operator's site origin and public
// asset origin into the allowed-origin set. Non-production modes always get
// the wildcard origin; an otherwise empty set falls back to the wildcard.
func ComputeAllowedOrigins(siteOrigin, assetOrigin string, env EnvMode) []string {
	var origins []string
	seen := map[string]bool{}
	add := func(o string) {
		if o == "" || seen[o] {
			return
		}
		seen[o] = true
		origins = append(origins, o)
	}

	add(siteOrigin)
	add(assetOrigin)
	if env != EnvProduction {
		add("*")
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

type corsRule struct {
	AllowedOrigins []string `xml:"AllowedOrigin"`
	AllowedMethods []string `xml:"AllowedMethod"`
	AllowedHeaders []string `xml:"AllowedHeader"`
	ExposeHeaders  []string `xml:"ExposeHeader"`
	MaxAgeSeconds  int      `xml:"MaxAgeSeconds"`
}

type corsConfiguration struct {
	XMLName xml.Name   `xml:"CORSConfiguration"`
	Rules   []corsRule `xml:"CORSRule"`
}

// corsRuleBody builds the PUT ?cors request body for the allowed origins.
// ETag must be exposed: multipart completion needs the client to read each
// part's ETag back from its upload response.
func corsRuleBody(origins []string) ([]byte, error) {
	cfg := corsConfiguration{
		Rules: []corsRule{{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "PUT", "POST"},
			AllowedHeaders: []string{"*"},
			ExposeHeaders:  []string{"ETag"},
			MaxAgeSeconds:  3600,
		}},
	}
	return xml.Marshal(cfg)
}
