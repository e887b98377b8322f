package r2up

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"simple key", "file.txt", true},
		{"nested key", "a/b/c.txt", true},
		{"unicode key", "resume-é.pdf", true},
		{"empty", "", false},
		{"root", "/", false},
		{"dot", ".", false},
		{"absolute", "/abs/file.txt", false},
		{"trailing slash", "dir/", false},
		{"traversal", "a/../b", false},
		{"double slash", "a//b", false},
		{"backslash", `a\b`, false},
		{"query char", "a?b", false},
		{"fragment char", "a#b", false},
		{"control char", "a\x01b", false},
		{"invalid utf8", "a\xffb", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidKey(tc.key))
		})
	}
}

func TestIsValidTableName(t *testing.T) {
	assert.True(t, IsValidTableName("r2up_sessions"))
	assert.True(t, IsValidTableName("_private"))
	assert.True(t, IsValidTableName("t1"))

	assert.False(t, IsValidTableName(""))
	assert.False(t, IsValidTableName("1sessions"))
	assert.False(t, IsValidTableName("drop table;"))
	assert.False(t, IsValidTableName("se ssions"))
	assert.False(t, IsValidTableName(strings.Repeat("a", 64)))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"My Vacation Photo.JPG", 64, "my-vacation-photo.jpg"},
		{"  spaced   out  ", 64, "spaced-out"},
		{"already-clean_1.txt", 64, "already-clean_1.txt"},
		{"!!!", 64, ""},
		{"trim--me--", 64, "trim--me"},
		{strings.Repeat("a", 100), 10, "aaaaaaaaaa"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, slugify(tc.in, tc.maxLen), "input %q", tc.in)
	}
}

func TestDeriveObjectKey(t *testing.T) {
	key := deriveObjectKey("uploads", CreateMultipartParams{
		OwnerID:  "User 42",
		Filename: "Q3 Report.pdf",
		Kind:     "document",
	})

	assert.True(t, IsValidKey(key))
	assert.True(t, strings.HasPrefix(key, "uploads/document/user-42/"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, "-q3-report.pdf"), "key %q", key)
}

func TestDeriveObjectKeyFallbackName(t *testing.T) {
	key := deriveObjectKey("uploads", CreateMultipartParams{
		OwnerID:     "owner",
		ContentType: "application/octet-stream",
	})

	assert.True(t, IsValidKey(key))
	assert.True(t, strings.HasSuffix(key, "-file.bin"), "key %q", key)
}

func TestDeriveObjectKeyUnique(t *testing.T) {
	p := CreateMultipartParams{OwnerID: "o", Filename: "same.txt"}

	first := deriveObjectKey("uploads", p)
	second := deriveObjectKey("uploads", p)

	assert.NotEqual(t, first, second)
}
