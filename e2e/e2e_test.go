package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnGrosso13/r2up"
)

func TestE2E_MultipartLifecycle_SQLite(t *testing.T) {
	runMultipartLifecycle(t, startStack(t, sqliteConfig(t)))
}

// runMultipartLifecycle drives a full multipart session through the HTTP
// API: create, upload the part bytes to the presigned URLs, complete out
// of order, and read the assembled object back through the proxy.
func runMultipartLifecycle(t *testing.T, s *stack) {
	t.Helper()
	client := &http.Client{}

	partBytes := [][]byte{
		bytes.Repeat([]byte("a"), 256),
		bytes.Repeat([]byte("b"), 256),
		bytes.Repeat([]byte("c"), 100),
	}

	var upload r2up.MultipartUpload

	t.Run("create session", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			"owner_id":     "user-42",
			"filename":     "Holiday Video.mp4",
			"content_type": "video/mp4",
			"total_parts":  3,
			"metadata":     map[string]string{"original_name": "Holiday Video.mp4"},
		})
		require.NoError(t, err)

		resp, err := client.Post(s.api.URL+"/api/multipart", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&upload))

		assert.NotEmpty(t, upload.UploadID)
		assert.Contains(t, upload.Key, "holiday-video.mp4")
		assert.Equal(t, r2up.DefaultProxyPathPrefix+"/"+upload.Key, upload.AbsoluteURL)
		require.Len(t, upload.Parts, 3)
	})

	etags := make(map[int]string)

	t.Run("upload parts to presigned URLs", func(t *testing.T) {
		for i, part := range upload.Parts {
			req, err := http.NewRequest(http.MethodPut, part.URL, bytes.NewReader(partBytes[i]))
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			etags[part.PartNumber] = resp.Header.Get("ETag")
		}
	})

	t.Run("complete out of order", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			"upload_id": upload.UploadID,
			"key":       upload.Key,
			"parts": []map[string]any{
				{"part_number": 3, "etag": etags[3]},
				{"part_number": 1, "etag": etags[1]},
				{"part_number": 2, "etag": etags[2]},
			},
		})
		require.NoError(t, err)

		resp, err := client.Post(s.api.URL+"/api/multipart/complete", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("object assembled in part order", func(t *testing.T) {
		obj, ok := s.store.object(upload.Key)
		require.True(t, ok)
		assert.Equal(t, bytes.Join(partBytes, nil), obj.data)
		assert.Equal(t, "video/mp4", obj.contentType)
		assert.Zero(t, s.store.pendingUploads())
	})

	t.Run("proxy serves the object", func(t *testing.T) {
		keyPath := (&url.URL{Path: upload.AbsoluteURL}).EscapedPath()
		resp, err := client.Get(s.api.URL + keyPath)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
		assert.NotEmpty(t, resp.Header.Get("ETag"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, bytes.Join(partBytes, nil), body)
	})

	t.Run("ledger session left completed", func(t *testing.T) {
		stale, err := s.ledger.ListStale(context.Background(), time.Now().UTC().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, stale, "completed sessions must not be stale candidates")
	})
}

func TestE2E_AbortMultipart(t *testing.T) {
	s := startStack(t, sqliteConfig(t))
	client := &http.Client{}

	body, err := json.Marshal(map[string]any{
		"owner_id": "user-42",
		"filename": "doomed.bin",
	})
	require.NoError(t, err)

	resp, err := client.Post(s.api.URL+"/api/multipart", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var upload r2up.MultipartUpload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&upload))
	resp.Body.Close()

	stale, err := s.ledger.ListStale(context.Background(), time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, r2up.SessionCreated, stale[0].State)

	abortBody, err := json.Marshal(map[string]any{
		"upload_id": upload.UploadID,
		"key":       upload.Key,
	})
	require.NoError(t, err)

	resp, err = client.Post(s.api.URL+"/api/multipart/abort", "application/json", bytes.NewReader(abortBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Zero(t, s.store.pendingUploads())

	stale, err = s.ledger.ListStale(context.Background(), time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestE2E_BufferUploadAndFetch(t *testing.T) {
	s := startStack(t, sqliteConfig(t))
	client := &http.Client{}

	content := []byte("thumbnail bytes")
	req, err := http.NewRequest(http.MethodPut, s.api.URL+"/uploads/object/thumbs/pic.png", bytes.NewReader(content))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/png")

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result r2up.UploadBufferResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, "thumbs/pic.png", result.Key)

	resp, err = client.Get(s.api.URL + "/uploads/object/thumbs/pic.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestE2E_CORSProvisionedOnce(t *testing.T) {
	s := startStack(t, sqliteConfig(t))
	client := &http.Client{}

	for i := 0; i < 3; i++ {
		body, err := json.Marshal(map[string]any{
			"owner_id": "user-42",
			"filename": "clip.mp4",
		})
		require.NoError(t, err)

		resp, err := client.Post(s.api.URL+"/api/multipart", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	s.store.mu.Lock()
	corsPuts := s.store.corsPuts
	s.store.mu.Unlock()
	assert.Equal(t, 1, corsPuts)
}
