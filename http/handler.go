package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/JohnGrosso13/r2up"
)

// Service is the upload subsystem surface the HTTP layer drives.
type Service interface {
	CreateMultipartUpload(ctx context.Context, p r2up.CreateMultipartParams) (*r2up.MultipartUpload, error)
	CompleteMultipartUpload(ctx context.Context, p r2up.CompleteMultipartParams) error
	AbortMultipartUpload(ctx context.Context, p r2up.AbortMultipartParams) error
	UploadBuffer(ctx context.Context, p r2up.UploadBufferParams) (r2up.UploadBufferResult, error)
	FetchObject(ctx context.Context, key string) (io.ReadCloser, r2up.ObjectInfo, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// ObjectPathPrefix is the route objects are proxied under. Defaults to
	// r2up.DefaultProxyPathPrefix so proxied URLs resolved by the service
	// line up with the routes served here.
	ObjectPathPrefix string

	// MaxUploadSize caps buffer upload request bodies in bytes. 0 means no
	// limit.
	MaxUploadSize int64

	CORS CORSConfig
}

// Handler provides HTTP handlers for the upload subsystem: a same-origin
// object proxy plus a JSON API for driving multipart sessions.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.ObjectPathPrefix == "" {
		cfg.ObjectPathPrefix = r2up.DefaultProxyPathPrefix
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with the proxy and API routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Route(h.config.ObjectPathPrefix, func(r chi.Router) {
		r.Get("/*", h.handleGetObject)
		r.Put("/*", h.handlePutObject)
	})

	r.Route("/api/multipart", func(r chi.Router) {
		r.Post("/", h.handleCreateMultipart)
		r.Post("/complete", h.handleCompleteMultipart)
		r.Post("/abort", h.handleAbortMultipart)
	})

	return r
}

func (h *Handler) handleGetObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	if !r2up.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid object key")
		return
	}

	body, info, err := h.service.FetchObject(r.Context(), key)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = body.Close() }()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	if info.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.ContentLength, 10))
	}

	_, _ = io.Copy(w, body)
}

func (h *Handler) handlePutObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	if !r2up.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid object key")
		return
	}

	reader := r.Body
	if h.config.MaxUploadSize > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "Upload body exceeds the configured limit")
			return
		}
		WriteError(w, http.StatusBadRequest, "read_body", "Could not read request body")
		return
	}

	result, err := h.service.UploadBuffer(r.Context(), r2up.UploadBufferParams{
		Key:         key,
		Data:        data,
		ContentType: r.Header.Get("Content-Type"),
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

type createMultipartRequest struct {
	OwnerID     string            `json:"owner_id"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	FileSize    int64             `json:"file_size"`
	TotalParts  int               `json:"total_parts"`
	Kind        string            `json:"kind"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *Handler) handleCreateMultipart(w http.ResponseWriter, r *http.Request) {
	var req createMultipartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Could not parse request body")
		return
	}

	up, err := h.service.CreateMultipartUpload(r.Context(), r2up.CreateMultipartParams{
		OwnerID:     req.OwnerID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
		TotalParts:  req.TotalParts,
		Kind:        req.Kind,
		Metadata:    req.Metadata,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, up)
}

type completeMultipartRequest struct {
	UploadID string               `json:"upload_id"`
	Key      string               `json:"key"`
	Parts    []r2up.CompletedPart `json:"parts"`
}

func (h *Handler) handleCompleteMultipart(w http.ResponseWriter, r *http.Request) {
	var req completeMultipartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Could not parse request body")
		return
	}

	err := h.service.CompleteMultipartUpload(r.Context(), r2up.CompleteMultipartParams{
		UploadID: req.UploadID,
		Key:      req.Key,
		Parts:    req.Parts,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type abortMultipartRequest struct {
	UploadID string `json:"upload_id"`
	Key      string `json:"key"`
}

func (h *Handler) handleAbortMultipart(w http.ResponseWriter, r *http.Request) {
	var req abortMultipartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Could not parse request body")
		return
	}

	err := h.service.AbortMultipartUpload(r.Context(), r2up.AbortMultipartParams{
		UploadID: req.UploadID,
		Key:      req.Key,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
