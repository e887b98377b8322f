package r2up

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MinPartSize and MaxPartSize bound the planned part size.
	MinPartSize = 8 << 20 // 8 MiB
	MaxPartSize = 5 << 30 // 5 GiB
	// DefaultPartSize is used when the file size is unknown.
	DefaultPartSize = 16 << 20 // 16 MiB

	// MaxPartCount is the store's multipart part limit.
	MaxPartCount = 10000

	// presignWorkers bounds the fan-out when presigning part URLs.
	presignWorkers = 8
)

// planParts computes the part size and count for a file. Part size aims for
// MaxPartCount equal slices of the file, clamped to [MinPartSize,
// MaxPartSize]; unknown sizes get DefaultPartSize and a single part unless
// the caller requested a count.
func planParts(fileSize int64, requested int) (int64, int) {
	partSize := int64(DefaultPartSize)
	if fileSize > 0 {
		partSize = (fileSize + MaxPartCount - 1) / MaxPartCount
		if partSize < MinPartSize {
			partSize = MinPartSize
		}
		if partSize > MaxPartSize {
			partSize = MaxPartSize
		}
	}

	count := requested
	if count <= 0 {
		if fileSize > 0 {
			count = int((fileSize + partSize - 1) / partSize)
		} else {
			count = 1
		}
	}
	if count < 1 {
		count = 1
	}
	if count > MaxPartCount {
		count = MaxPartCount
	}
	return partSize, count
}

type initiateMultipartResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

type completeUploadPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeUploadBody struct {
	XMLName xml.Name             `xml:"CompleteMultipartUpload"`
	Parts   []completeUploadPart `xml:"Part"`
}

// CreateMultipartUpload derives an object key for the intent, initiates a
// multipart upload at the store, and presigns one PUT URL per planned part.
// The application's client uploads part bytes directly to those URLs; this
// service never sees them.
func (s *Service) CreateMultipartUpload(ctx context.Context, p CreateMultipartParams) (*MultipartUpload, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("create multipart upload: %w: owner id cannot be empty", ErrInvalidInput)
	}
	if p.Filename == "" && p.ContentType == "" {
		return nil, fmt.Errorf("create multipart upload: %w: filename or content type required", ErrInvalidInput)
	}

	s.cors.Ensure(ctx)

	key := deriveObjectKey(s.cfg.KeyPrefix, p)
	partSize, partCount := planParts(p.FileSize, p.TotalParts)

	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{"Content-Type": contentType}
	for name, value := range MetadataHeaders(p.Metadata) {
		headers[name] = value
	}

	resp, err := s.do(ctx, "create multipart upload", http.MethodPost, key,
		url.Values{"uploads": {""}}, headers, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result initiateMultipartResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("create multipart upload: parse response: %w", err)
	}
	if result.UploadID == "" {
		return nil, fmt.Errorf("create multipart upload: %w: store returned no upload id", ErrInvalidInput)
	}

	up := &MultipartUpload{
		UploadID:    result.UploadID,
		Key:         key,
		Bucket:      s.creds.Bucket,
		PartSize:    partSize,
		Parts:       s.presignParts(key, result.UploadID, partCount),
		AbsoluteURL: s.PublicURL(key),
	}

	s.recordSession(ctx, up, p.OwnerID)

	s.logger.Debug("created multipart upload",
		"key", key, "upload_id", up.UploadID, "parts", partCount, "part_size", partSize)
	return up, nil
}

// presignParts signs one PUT URL per part number. Each signature is a pure
// computation over local inputs, so the fan-out runs on a bounded worker
// pool with order restored by index.
func (s *Service) presignParts(key, uploadID string, count int) []Part {
	parts := make([]Part, count)

	workers := presignWorkers
	if workers > count {
		workers = count
	}

	var wg sync.WaitGroup
	numbers := make(chan int)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range numbers {
				q := url.Values{
					"partNumber": {strconv.Itoa(n)},
					"uploadId":   {uploadID},
				}
				partURL, expiresAt := s.signer.Presign(http.MethodPut, key, q, s.cfg.PartURLTTL)
				parts[n-1] = Part{PartNumber: n, URL: partURL, ExpiresAt: expiresAt}
			}
		}()
	}
	for n := 1; n <= count; n++ {
		numbers <- n
	}
	close(numbers)
	wg.Wait()

	return parts
}

// CompleteMultipartUpload assembles the uploaded parts into the final
// object. Parts may arrive in any order; the completion body lists them by
// ascending part number with surrounding ETag quotes stripped.
func (s *Service) CompleteMultipartUpload(ctx context.Context, p CompleteMultipartParams) error {
	if p.UploadID == "" || p.Key == "" {
		return fmt.Errorf("complete multipart upload: %w: upload id and key required", ErrInvalidInput)
	}
	if len(p.Parts) == 0 {
		return fmt.Errorf("complete multipart upload: %w: no parts", ErrInvalidInput)
	}

	sorted := make([]CompletedPart, len(p.Parts))
	copy(sorted, p.Parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	body := completeUploadBody{Parts: make([]completeUploadPart, len(sorted))}
	for i, part := range sorted {
		body.Parts[i] = completeUploadPart{
			PartNumber: part.PartNumber,
			ETag:       strings.Trim(part.ETag, `"`),
		}
	}

	payload, err := xml.Marshal(body)
	if err != nil {
		return fmt.Errorf("complete multipart upload: marshal body: %w", err)
	}

	resp, err := s.do(ctx, "complete multipart upload", http.MethodPost, p.Key,
		url.Values{"uploadId": {p.UploadID}},
		map[string]string{"Content-Type": "application/xml"},
		payload,
	)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	s.setSessionState(ctx, p.UploadID, SessionCompleted)

	s.logger.Debug("completed multipart upload", "key", p.Key, "upload_id", p.UploadID, "parts", len(sorted))
	return nil
}

// AbortMultipartUpload discards a multipart session. Safe to attempt twice;
// the store may reject the second call once the upload id is gone. Parts
// already uploaded but never committed are reclaimed by the store's own
// garbage collection.
func (s *Service) AbortMultipartUpload(ctx context.Context, p AbortMultipartParams) error {
	if p.UploadID == "" || p.Key == "" {
		return fmt.Errorf("abort multipart upload: %w: upload id and key required", ErrInvalidInput)
	}

	resp, err := s.do(ctx, "abort multipart upload", http.MethodDelete, p.Key,
		url.Values{"uploadId": {p.UploadID}}, nil, nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	s.setSessionState(ctx, p.UploadID, SessionAborted)

	s.logger.Debug("aborted multipart upload", "key", p.Key, "upload_id", p.UploadID)
	return nil
}

// CleanupStale aborts ledger sessions still in SessionCreated older than
// maxAge. Sessions the store no longer knows (already garbage-collected)
// are marked aborted anyway. Requires a configured ledger.
func (s *Service) CleanupStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	if s.ledger == nil {
		return 0, fmt.Errorf("cleanup stale: %w: no session ledger configured", ErrMissingConfig)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	sessions, err := s.ledger.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale: %w", err)
	}

	cleaned := 0
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return cleaned, fmt.Errorf("cleanup stale: %w", err)
		}

		err := s.AbortMultipartUpload(ctx, AbortMultipartParams{
			UploadID: session.UploadID,
			Key:      session.Key,
		})
		if err != nil && !isGoneFromStore(err) {
			return cleaned, fmt.Errorf("cleanup stale '%s': %w", session.Key, err)
		}
		if isGoneFromStore(err) {
			s.setSessionState(ctx, session.UploadID, SessionAborted)
		}
		cleaned++
	}
	return cleaned, nil
}

// isGoneFromStore reports whether an abort failed only because the store no
// longer tracks the upload id.
func isGoneFromStore(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}

func (s *Service) recordSession(ctx context.Context, up *MultipartUpload, ownerID string) {
	if s.ledger == nil {
		return
	}

	now := time.Now().UTC()
	session := UploadSession{
		ID:        uuid.New(),
		UploadID:  up.UploadID,
		Key:       up.Key,
		OwnerID:   ownerID,
		PartSize:  up.PartSize,
		PartCount: len(up.Parts),
		State:     SessionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Record(ctx, session); err != nil {
		s.logger.Warn("record upload session failed", "upload_id", up.UploadID, "err", err)
	}
}

func (s *Service) setSessionState(ctx context.Context, uploadID string, state SessionState) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.SetState(ctx, uploadID, state); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("update upload session failed", "upload_id", uploadID, "state", state, "err", err)
	}
}
