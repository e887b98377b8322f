package r2up

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials holds the long-lived secrets and addressing for an
// S3-compatible account. Loaded once at startup and never mutated.
type Credentials struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// AccountHost is the account-scoped API host,
	// e.g. "abc123.r2.cloudflarestorage.com". Objects are addressed
	// path-style below it: https://<host>/<bucket>/<key>.
	AccountHost string `mapstructure:"account_host"`
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
	Service     string `mapstructure:"service"`
	// Endpoint overrides the derived https://<AccountHost> base URL, for
	// local stores and tests.
	Endpoint string `mapstructure:"endpoint"`
}

// Validate checks that the fields every signed request needs are present.
func (c Credentials) Validate() error {
	if c.AccessKeyID == "" {
		return fmt.Errorf("validate credentials: %w: access key id", ErrMissingConfig)
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("validate credentials: %w: secret access key", ErrMissingConfig)
	}
	if c.AccountHost == "" && c.Endpoint == "" {
		return fmt.Errorf("validate credentials: %w: account host", ErrMissingConfig)
	}
	if c.Bucket == "" {
		return fmt.Errorf("validate credentials: %w: bucket", ErrMissingConfig)
	}
	return nil
}

// withDefaults returns a copy with the fixed region/service applied.
func (c Credentials) withDefaults() Credentials {
	if c.Region == "" {
		c.Region = "auto"
	}
	if c.Service == "" {
		c.Service = "s3"
	}
	return c
}

// baseURL returns the base URL of the store API.
func (c Credentials) baseURL() string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/")
	}
	return "https://" + c.AccountHost
}

// signingHost returns the host the signer binds signatures to.
func (c Credentials) signingHost() string {
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return c.AccountHost
}

type EnvMode string

const (
	EnvProduction  EnvMode = "production"
	EnvDevelopment EnvMode = "development"
)

func (m EnvMode) IsValid() bool {
	switch m {
	case EnvProduction, EnvDevelopment:
		return true
	default:
		return false
	}
}

func ParseEnvMode(s string) (EnvMode, error) {
	mode := EnvMode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid env mode: %s (valid modes: production, development)", s)
	}
	return mode, nil
}

// Part is one presigned upload slot of a multipart session. The client PUTs
// the part bytes directly to URL before ExpiresAt.
type Part struct {
	PartNumber int       `json:"part_number"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CompletedPart is the client's report of one uploaded part.
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

// CreateMultipartParams describes the application's upload intent.
type CreateMultipartParams struct {
	OwnerID     string
	Filename    string
	ContentType string
	// FileSize in bytes; 0 means unknown.
	FileSize int64
	// TotalParts requested by the caller; 0 derives the count from FileSize.
	TotalParts int
	// Kind is an optional logical grouping folded into the object key,
	// e.g. "avatar" or "attachment".
	Kind     string
	Metadata map[string]string
}

// MultipartUpload is the session returned by CreateMultipartUpload. It is
// read-only; UploadID+Key is the correlation token the application must
// round-trip to complete or abort.
type MultipartUpload struct {
	UploadID    string `json:"upload_id"`
	Key         string `json:"key"`
	Bucket      string `json:"bucket"`
	PartSize    int64  `json:"part_size"`
	Parts       []Part `json:"parts"`
	AbsoluteURL string `json:"absolute_url"`
}

type CompleteMultipartParams struct {
	UploadID string
	Key      string
	Parts    []CompletedPart
}

type AbortMultipartParams struct {
	UploadID string
	Key      string
}

// UploadBufferParams describes a single-shot PUT of an in-memory buffer.
type UploadBufferParams struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type UploadBufferResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ObjectInfo carries the response metadata of a fetched object.
type ObjectInfo struct {
	ContentType   string
	ContentLength int64
	ETag          string
}

// SessionState tracks a recorded multipart session through its lifecycle.
type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionCompleted SessionState = "completed"
	SessionAborted   SessionState = "aborted"
)

func (s SessionState) IsValid() bool {
	switch s {
	case SessionCreated, SessionCompleted, SessionAborted:
		return true
	default:
		return false
	}
}

// Tables holds the database table names for the session ledger.
type Tables struct {
	Sessions string `mapstructure:"sessions"`
}

// Validate checks that all table names are present and valid SQL
// identifiers.
func (t Tables) Validate() error {
	if !IsValidTableName(t.Sessions) {
		return fmt.Errorf("%w: invalid sessions table name: %q", ErrInvalidInput, t.Sessions)
	}
	return nil
}

// UploadSession is a ledger record of one multipart session.
type UploadSession struct {
	ID        uuid.UUID    `json:"id"`
	UploadID  string       `json:"upload_id"`
	Key       string       `json:"key"`
	OwnerID   string       `json:"owner_id"`
	PartSize  int64        `json:"part_size"`
	PartCount int          `json:"part_count"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
