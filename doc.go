// Package r2up implements direct-to-bucket uploads for S3-compatible
// object stores without the vendor SDK.
//
// The package signs requests with AWS Signature Version 4 implemented from
// crypto primitives, and uses that signer for two upload paths: multipart
// uploads driven by presigned per-part URLs handed to an untrusted client,
// and single-shot buffer uploads performed by the service itself.
//
// # Key Components
//
//   - Service: the narrow interface the application layer consumes
//     (CreateMultipartUpload, CompleteMultipartUpload, AbortMultipartUpload,
//     PublicURL, UploadBuffer)
//   - Signer: canonical request construction, signing key derivation, and
//     both header-based and presigned query-string signing modes
//   - CORSProvisioner: idempotent one-time bucket CORS setup shared across
//     concurrent callers
//   - SessionLedger: optional persistence of multipart sessions so stale
//     uploads can be found and aborted later (see the database package)
//
// # Upload Flow
//
//	svc, err := r2up.NewService(r2up.ServiceConfig{Credentials: creds})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start a multipart upload; the client PUTs bytes to the part URLs.
//	up, err := svc.CreateMultipartUpload(ctx, r2up.CreateMultipartParams{
//	    OwnerID:     "user-42",
//	    Filename:    "video.mp4",
//	    ContentType: "video/mp4",
//	    FileSize:    1 << 30,
//	})
//
//	// The client reports the ETag of each uploaded part.
//	err = svc.CompleteMultipartUpload(ctx, r2up.CompleteMultipartParams{
//	    UploadID: up.UploadID,
//	    Key:      up.Key,
//	    Parts:    collected,
//	})
//
// See the http package for the same-origin upload proxy and the database
// packages for the session ledger backends.
package r2up
