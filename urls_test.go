package r2up_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnGrosso13/r2up"
)

func urlService(t *testing.T, mutate func(*r2up.ServiceConfig)) *r2up.Service {
	t.Helper()
	cfg := r2up.ServiceConfig{
		Credentials: r2up.Credentials{
			AccessKeyID:     "AKIATEST",
			SecretAccessKey: "testsecret",
			AccountHost:     "acct123.r2.cloudflarestorage.com",
			Bucket:          "media",
		},
		Env: r2up.EnvProduction,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := r2up.NewService(cfg)
	require.NoError(t, err)
	return svc
}

func TestPublicURLWithConfiguredBase(t *testing.T) {
	svc := urlService(t, func(cfg *r2up.ServiceConfig) {
		cfg.PublicBaseURL = "https://cdn.media-host.net"
	})

	assert.Equal(t, "https://cdn.media-host.net/uploads/u/a.png", svc.PublicURL("uploads/u/a.png"))
}

func TestPublicURLTrimsBaseSlashAndEncodesKey(t *testing.T) {
	svc := urlService(t, func(cfg *r2up.ServiceConfig) {
		cfg.PublicBaseURL = "https://cdn.media-host.net/"
	})

	assert.Equal(t, "https://cdn.media-host.net/dir/a%20b.png", svc.PublicURL("dir/a b.png"))
}

func TestPublicURLFallsBackToProxyForPlaceholderHosts(t *testing.T) {
	placeholders := []string{
		"",
		"http://localhost:3000",
		"https://127.0.0.1",
		"https://example.com",
		"https://cdn.example.com",
		"https://assets.myapp.test",
		"https://your-domain-here.net",
		"https://bucket.placeholder.net",
		"not a url",
	}

	for _, base := range placeholders {
		svc := urlService(t, func(cfg *r2up.ServiceConfig) {
			cfg.PublicBaseURL = base
		})

		assert.Equal(t, r2up.DefaultProxyPathPrefix+"/uploads/k.bin",
			svc.PublicURL("uploads/k.bin"), "base %q", base)
	}
}

func TestPublicURLDirectFallback(t *testing.T) {
	svc := urlService(t, func(cfg *r2up.ServiceConfig) {
		cfg.PublicBaseURL = "http://localhost:3000"
		cfg.DisableProxyFallback = true
	})

	assert.Equal(t,
		"https://acct123.r2.cloudflarestorage.com/media/uploads/k.bin",
		svc.PublicURL("uploads/k.bin"))
}
