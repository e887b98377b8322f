package r2up

import (
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// IsValidKey validates that a string is usable as an object key.
// It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/") and does not end with "/"
//   - does not contain ".." (path traversal) or "//" (empty segments)
//   - does not contain invalid characters: \ ? #
//   - is valid UTF-8 and free of control characters
func IsValidKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}

	if k[0] == '/' || strings.HasSuffix(k, "/") {
		return false
	}

	if strings.Contains(k, "..") || strings.Contains(k, "//") {
		return false
	}

	if strings.ContainsAny(k, `\?#`) {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	for _, r := range k {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}

// IsValidTableName validates that a string is usable as a SQL table name:
// a letter or underscore followed by letters, digits or underscores, at most
// 63 bytes.
func IsValidTableName(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// deriveObjectKey builds a unique object key from the upload intent:
// <prefix>/[<kind>/]<owner>/<uuid>-<slug>. The uuid guarantees uniqueness;
// the slug keeps keys readable for operators browsing the bucket.
func deriveObjectKey(prefix string, p CreateMultipartParams) string {
	segments := []string{prefix}
	if kind := slugify(p.Kind, 32); kind != "" {
		segments = append(segments, kind)
	}
	if owner := slugify(p.OwnerID, 64); owner != "" {
		segments = append(segments, owner)
	}
	name := slugify(p.Filename, 64)
	if name == "" {
		name = "file" + extensionFor(p.ContentType)
	}
	segments = append(segments, uuid.NewString()+"-"+name)
	return path.Join(segments...)
}

// slugify lower-cases s and reduces it to [a-z0-9._-], replacing runs of
// other characters with a single dash and capping the result at maxLen
// bytes.
func slugify(s string, maxLen int) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-.")
	if len(out) > maxLen {
		out = strings.Trim(out[:maxLen], "-.")
	}
	return out
}

// extensionFor guesses a file extension from a content type, defaulting to
// ".bin" when nothing is registered.
func extensionFor(contentType string) string {
	if contentType == "" {
		return ".bin"
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}
