package r2up

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"

	// UnsignedPayload is the payload-hash token used when the signer never
	// sees the request body (presigned part uploads).
	UnsignedPayload = "UNSIGNED-PAYLOAD"
)

// emptyPayloadHash is the hex SHA-256 of the empty string, used for signed
// requests without a body.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Signer produces AWS Signature V4 signatures for requests against a single
// bucket. It supports header-based signing for calls the service executes
// itself and query-string presigning for capabilities handed to clients.
//
// Signing is a pure computation over local inputs; a Signer is safe for
// concurrent use. The request-scoped signing key is rederived on every call
// (4 HMAC operations) so secret rotation never fights a cache.
type Signer struct {
	creds Credentials
	now   func() time.Time
}

// NewSigner creates a Signer for the given credentials. Region and service
// default to "auto" and "s3".
func NewSigner(creds Credentials) *Signer {
	return &Signer{
		creds: creds.withDefaults(),
		now:   time.Now,
	}
}

// ResourcePath returns the path-style resource path for a key:
// "/<bucket>/<encoded key>". Each key segment is percent-encoded
// independently; slashes inside the key stay path separators. An empty key
// addresses the bucket itself.
func (s *Signer) ResourcePath(key string) string {
	p := "/" + awsURIEncode(s.creds.Bucket, true)
	if key != "" {
		p += "/" + awsURIEncode(key, false)
	}
	return p
}

// SignRequest attaches an Authorization header plus x-amz-date and
// x-amz-content-sha256 to req. body must be the exact request payload (nil
// for none); its SHA-256 becomes the signed payload hash. Every header
// already present on the request is signed.
func (s *Signer) SignRequest(req *http.Request, body []byte) {
	now := s.now().UTC()
	amzDate := now.Format(DateTimeFormat)
	dateStamp := now.Format(DateFormat)

	payloadHash := emptyPayloadHash
	if len(body) > 0 {
		payloadHash = sha256Hex(body)
	}

	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	canonicalRequest, signedHeaders := buildCanonicalRequest(
		req.Method,
		req.URL.EscapedPath(),
		req.URL.Query(),
		req.Header,
		payloadHash,
	)

	scope := s.credentialScope(dateStamp)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)

	signingKey := deriveSigningKey(s.creds.SecretAccessKey, dateStamp, s.creds.Region, s.creds.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		SignatureAlgorithm, s.creds.AccessKeyID, scope, signedHeaders, signature))
}

// Presign returns a presigned URL granting one HTTP operation on key until
// the expiry window closes. query carries operation parameters such as
// partNumber and uploadId; the five X-Amz-* signature parameters are
// injected before hashing and the computed X-Amz-Signature is appended. The
// URL alone is the complete capability; no Authorization header exists.
// Expiry windows beyond MaxExpiresSeconds are clamped to it, matching the
// store-side limit on presigned lifetimes.
func (s *Signer) Presign(method, key string, query url.Values, expires time.Duration) (string, time.Time) {
	if expires > MaxExpiresSeconds*time.Second {
		expires = MaxExpiresSeconds * time.Second
	}

	now := s.now().UTC()
	amzDate := now.Format(DateTimeFormat)
	dateStamp := now.Format(DateFormat)
	scope := s.credentialScope(dateStamp)

	q := url.Values{}
	for name, values := range query {
		q[name] = append([]string(nil), values...)
	}
	q.Set("X-Amz-Algorithm", SignatureAlgorithm)
	q.Set("X-Amz-Credential", s.creds.AccessKeyID+"/"+scope)
	q.Set("X-Amz-Date", amzDate)
	q.Set("X-Amz-Expires", strconv.Itoa(int(expires/time.Second)))
	q.Set("X-Amz-SignedHeaders", "host")

	headers := http.Header{}
	headers.Set("Host", s.creds.signingHost())

	path := s.ResourcePath(key)
	canonicalRequest, _ := buildCanonicalRequest(method, path, q, headers, UnsignedPayload)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)

	signingKey := deriveSigningKey(s.creds.SecretAccessKey, dateStamp, s.creds.Region, s.creds.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	q.Set("X-Amz-Signature", signature)

	return s.creds.baseURL() + path + "?" + buildCanonicalQueryString(q), now.Add(expires)
}

func (s *Signer) credentialScope(dateStamp string) string {
	return fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, s.creds.Region, s.creds.Service)
}

// buildCanonicalRequest joins the canonical form of a request with newline
// separators and returns it with the semicolon-joined signed-header list.
// The store reverses this construction byte for byte, so ordering and
// encoding here are load-bearing.
func buildCanonicalRequest(method, path string, query url.Values, headers http.Header, payloadHash string) (string, string) {
	canonicalQuery := buildCanonicalQueryString(query)
	canonicalHeaders, signedHeaders := buildCanonicalHeaders(headers)

	return strings.Join([]string{
		method,
		path,
		canonicalQuery, // empty query still contributes an empty line
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n"), signedHeaders
}

// buildCanonicalQueryString encodes parameters sorted lexicographically by
// name, then value. url.Values.Encode is unusable here: it emits "+" for
// spaces where the signing scheme requires "%20".
func buildCanonicalQueryString(query url.Values) string {
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		values := append([]string(nil), query[name]...)
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(awsURIEncode(name, true))
			b.WriteByte('=')
			b.WriteString(awsURIEncode(v, true))
		}
	}
	return b.String()
}

// buildCanonicalHeaders lower-cases header names, collapses value
// whitespace, folds duplicate names into one comma-joined value, and emits
// one "name:value\n" line per header in sorted order.
func buildCanonicalHeaders(headers http.Header) (string, string) {
	folded := make(map[string]string, len(headers))
	names := make([]string, 0, len(headers))
	for name, values := range headers {
		lower := strings.ToLower(strings.TrimSpace(name))
		value := collapseSpaces(strings.Join(values, ","))
		if _, seen := folded[lower]; seen {
			folded[lower] = folded[lower] + "," + value
			continue
		}
		folded[lower] = value
		names = append(names, lower)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(folded[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

func buildStringToSign(amzDate, credentialScope, canonicalRequest string) string {
	return strings.Join([]string{
		SignatureAlgorithm,
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")
}

// deriveSigningKey chains four HMAC-SHA256 operations from the long-lived
// secret down to a key scoped to one UTC day, region and service.
func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	kSigning := hmacSHA256(kService, []byte("aws4_request"))
	return kSigning
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// awsURIEncode percent-encodes s per the signing scheme's strict RFC 3986
// rules: unreserved characters pass through, everything else becomes
// uppercase %XX per byte. Slashes survive when encodeSlash is false so keys
// keep their path separators.
func awsURIEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
