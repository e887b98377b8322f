package e2e_test

import (
	"context"
	"crypto/md5" //#nosec G501 -- store ETags are md5 by convention, not a security control
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JohnGrosso13/r2up"
	"github.com/JohnGrosso13/r2up/database"
	r2uphttp "github.com/JohnGrosso13/r2up/http"
)

type storedObject struct {
	data        []byte
	contentType string
	etag        string
}

// fakeStore is an in-memory S3-compatible store covering the slice of the
// protocol the subsystem speaks: bucket CORS, multipart initiate, presigned
// part PUTs, complete, abort, and plain object GET and PUT.
type fakeStore struct {
	mu         sync.Mutex
	objects    map[string]storedObject
	parts      map[string]map[int][]byte
	uploadKeys map[string]string
	uploadMeta map[string]string
	nextUpload int
	corsPuts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:    make(map[string]storedObject),
		parts:      make(map[string]map[int][]byte),
		uploadKeys: make(map[string]string),
		uploadMeta: make(map[string]string),
	}
}

func (f *fakeStore) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/media"), "/")
		q := r.URL.Query()

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case q.Has("cors") && r.Method == http.MethodPut:
			f.corsPuts++
			w.WriteHeader(http.StatusOK)

		case q.Has("uploads") && r.Method == http.MethodPost:
			f.nextUpload++
			uploadID := fmt.Sprintf("e2e-upload-%d", f.nextUpload)
			f.parts[uploadID] = make(map[int][]byte)
			f.uploadKeys[uploadID] = key
			f.uploadMeta[uploadID] = r.Header.Get("Content-Type")

			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<InitiateMultipartUploadResult><Bucket>media</Bucket><Key>%s</Key><UploadId>%s</UploadId></InitiateMultipartUploadResult>`, key, uploadID)

		case q.Has("partNumber"):
			// Part uploads arrive on presigned URLs, never with a header
			// signature.
			require.NotEmpty(t, q.Get("X-Amz-Signature"))
			require.Empty(t, r.Header.Get("Authorization"))

			uploadID := q.Get("uploadId")
			parts, ok := f.parts[uploadID]
			if !ok {
				http.Error(w, "no such upload", http.StatusNotFound)
				return
			}
			num, err := strconv.Atoi(q.Get("partNumber"))
			require.NoError(t, err)

			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			parts[num] = data

			w.Header().Set("ETag", `"`+etagOf(data)+`"`)
			w.WriteHeader(http.StatusOK)

		case q.Has("uploadId") && r.Method == http.MethodPost:
			uploadID := q.Get("uploadId")
			parts, ok := f.parts[uploadID]
			if !ok {
				http.Error(w, "no such upload", http.StatusNotFound)
				return
			}

			var body struct {
				XMLName xml.Name `xml:"CompleteMultipartUpload"`
				Parts   []struct {
					PartNumber int    `xml:"PartNumber"`
					ETag       string `xml:"ETag"`
				} `xml:"Part"`
			}
			require.NoError(t, xml.NewDecoder(r.Body).Decode(&body))
			require.True(t, sort.SliceIsSorted(body.Parts, func(i, j int) bool {
				return body.Parts[i].PartNumber < body.Parts[j].PartNumber
			}), "complete body parts must be ascending")

			var assembled []byte
			for _, p := range body.Parts {
				data, ok := parts[p.PartNumber]
				require.True(t, ok, "complete references part %d that was never uploaded", p.PartNumber)
				require.Equal(t, etagOf(data), p.ETag)
				assembled = append(assembled, data...)
			}

			f.objects[f.uploadKeys[uploadID]] = storedObject{
				data:        assembled,
				contentType: f.uploadMeta[uploadID],
				etag:        etagOf(assembled),
			}
			delete(f.parts, uploadID)

			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<CompleteMultipartUploadResult><Key>%s</Key></CompleteMultipartUploadResult>`, key)

		case q.Has("uploadId") && r.Method == http.MethodDelete:
			uploadID := q.Get("uploadId")
			if _, ok := f.parts[uploadID]; !ok {
				http.Error(w, "no such upload", http.StatusNotFound)
				return
			}
			delete(f.parts, uploadID)
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodPut:
			require.NotEmpty(t, r.Header.Get("Authorization"))
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			f.objects[key] = storedObject{
				data:        data,
				contentType: r.Header.Get("Content-Type"),
				etag:        etagOf(data),
			}
			w.Header().Set("ETag", `"`+f.objects[key].etag+`"`)
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodGet:
			obj, ok := f.objects[key]
			if !ok {
				http.Error(w, "no such key", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", obj.contentType)
			w.Header().Set("ETag", `"`+obj.etag+`"`)
			_, _ = w.Write(obj.data)

		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	})
}

func (f *fakeStore) pendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.parts)
}

func (f *fakeStore) object(key string) (storedObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj, ok
}

func etagOf(data []byte) string {
	sum := md5.Sum(data) //#nosec G401 -- store ETags are md5 by convention
	return hex.EncodeToString(sum[:])
}

// stack is a fully wired subsystem: the store fake, the service with a
// session ledger, and the HTTP API served over a test server.
type stack struct {
	store   *fakeStore
	service *r2up.Service
	ledger  r2up.SessionLedger
	api     *httptest.Server
}

func startStack(t *testing.T, dbCfg database.Config) *stack {
	t.Helper()

	store := newFakeStore()
	storeSrv := httptest.NewServer(store.handler(t))
	t.Cleanup(storeSrv.Close)

	ledger, closeDB, err := database.Connect(context.Background(), dbCfg)
	require.NoError(t, err)
	t.Cleanup(closeDB)

	service, err := r2up.NewService(r2up.ServiceConfig{
		Credentials: r2up.Credentials{
			AccessKeyID:     "AKIAE2E",
			SecretAccessKey: "e2esecret",
			AccountHost:     "acct123.r2.cloudflarestorage.com",
			Bucket:          "media",
			Endpoint:        storeSrv.URL,
		},
		SiteOrigin: "https://app.example-site.net",
		Env:        r2up.EnvProduction,
		Ledger:     ledger,
	})
	require.NoError(t, err)

	handler := r2uphttp.NewHandler(&r2uphttp.HandlerConfig{
		MaxUploadSize: 1 << 20,
	}, service)

	api := httptest.NewServer(handler.Router())
	t.Cleanup(api.Close)

	return &stack{
		store:   store,
		service: service,
		ledger:  ledger,
		api:     api,
	}
}

func sqliteConfig(t *testing.T) database.Config {
	t.Helper()
	return database.Config{
		Type:   "sqlite",
		DSN:    filepath.Join(t.TempDir(), "e2e.db"),
		Tables: r2up.Tables{Sessions: "r2up_sessions"},
	}
}
