package r2up

import (
	"fmt"
	"strings"
)

const (
	// MetadataHeaderPrefix is the vendor prefix for per-object metadata
	// headers.
	MetadataHeaderPrefix = "x-amz-meta-"

	// maxMetadataValueBytes caps each sanitized metadata value.
	maxMetadataValueBytes = 1024
)

// SanitizeMetadata normalizes arbitrary application-supplied key/value
// pairs into header-safe tokens.
//
// Keys are lower-cased, characters outside [a-z0-9._-] become "_", leading
// and trailing underscores are trimmed, and entries whose key ends up empty
// are dropped. Values lose control characters, have non-ASCII bytes
// percent-encoded, are whitespace-trimmed and capped at 1024 bytes without
// splitting a percent-encoded triplet; entries whose value ends up empty
// are dropped.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		key := sanitizeMetadataKey(k)
		if key == "" {
			continue
		}
		value := sanitizeMetadataValue(v)
		if value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MetadataHeaders sanitizes metadata and returns it as one vendor-prefixed
// header per entry.
func MetadataHeaders(metadata map[string]string) map[string]string {
	clean := SanitizeMetadata(metadata)
	if clean == nil {
		return nil
	}
	headers := make(map[string]string, len(clean))
	for k, v := range clean {
		headers[MetadataHeaderPrefix+k] = v
	}
	return headers
}

func sanitizeMetadataKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func sanitizeMetadataValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters are stripped outright
		case r > 0x7f:
			for _, c := range []byte(string(r)) {
				fmt.Fprintf(&b, "%%%02X", c)
			}
		default:
			b.WriteRune(r)
		}
	}

	s := strings.TrimSpace(b.String())
	if len(s) > maxMetadataValueBytes {
		s = truncateEncoded(s, maxMetadataValueBytes)
	}
	return s
}

// truncateEncoded cuts s to at most limit bytes, backing up to the last
// complete %XX triplet if the cut would split one.
func truncateEncoded(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	if idx := strings.LastIndexByte(s[:cut], '%'); idx >= 0 && idx > cut-3 {
		cut = idx
	}
	return s[:cut]
}
