package r2up

import (
	"context"
	"fmt"
	"net/http"
)

// UploadBuffer stores a small in-memory buffer at the given key with one
// header-signed PUT. Metadata is sanitized the same way as for multipart
// uploads. Use this for thumbnails, generated assets and other payloads
// that fit comfortably in memory; large files belong in the multipart flow.
func (s *Service) UploadBuffer(ctx context.Context, p UploadBufferParams) (UploadBufferResult, error) {
	if !IsValidKey(p.Key) {
		return UploadBufferResult{}, fmt.Errorf("upload buffer %q: %w: invalid key", p.Key, ErrInvalidInput)
	}
	if len(p.Data) == 0 {
		return UploadBufferResult{}, fmt.Errorf("upload buffer %s: %w: empty buffer", p.Key, ErrInvalidInput)
	}

	s.cors.Ensure(ctx)

	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{"Content-Type": contentType}
	for name, value := range MetadataHeaders(p.Metadata) {
		headers[name] = value
	}

	resp, err := s.do(ctx, "upload buffer", http.MethodPut, p.Key, nil, headers, p.Data)
	if err != nil {
		return UploadBufferResult{}, err
	}
	_ = resp.Body.Close()

	s.logger.Debug("uploaded buffer", "key", p.Key, "bytes", len(p.Data))
	return UploadBufferResult{
		Key: p.Key,
		URL: s.PublicURL(p.Key),
	}, nil
}
