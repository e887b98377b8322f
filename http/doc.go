// Package http provides the HTTP surface of the upload subsystem.
//
// Two route groups are served:
//
//   - The object proxy (default /uploads/object/*) streams bucket objects
//     through the application's own origin. The service resolves public
//     URLs to these paths when no real public base URL is configured, so
//     local development works without a public domain.
//
//   - The multipart API (/api/multipart) lets browser clients create,
//     complete, and abort multipart upload sessions. The part bytes
//     themselves never pass through this server; clients PUT them directly
//     to the presigned URLs returned on create.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    MaxUploadSize: 32 << 20,
//	    CORS:          http.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
//	}, service)
//
//	srv := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
package http
