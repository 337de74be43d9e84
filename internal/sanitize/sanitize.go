// Package sanitize maps storage keys onto the character sets the storage
// backends accept.
//
// History keys embed editor block IDs ("chat-history_<id>") and are safe as
// they are, but keys are not trusted: the NATS key-value layer rejects most
// punctuation and the editor's plugin storage is a directory on disk, so a
// key must never be able to name a path outside it.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxFileNameLength bounds file names in plugin storage.
	MaxFileNameLength = 128

	// HashSuffixLength is the length of the hash suffix added to truncated
	// names. Format: _<8-char-hash> = 9 characters total
	HashSuffixLength = 9
)

var (
	// ErrEmptyKey indicates a blank key.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrPathTraversal indicates a key that contains path separators or
	// parent directory references.
	ErrPathTraversal = errors.New("key contains path traversal")

	// ErrInvalidKey indicates a key with control characters.
	ErrInvalidKey = errors.New("key contains control characters")
)

// ValidateKey rejects keys no backend should store.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrPathTraversal, key)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidKey
		}
	}
	return nil
}

// KVKey escapes characters the NATS key-value layer rejects. Letters,
// digits, '-' and '_' pass through; every other byte, '=' included, becomes
// =XX. The mapping is injective.
//
// Examples:
//
//	"chat-history_20240101120000-abcdefg" -> unchanged
//	"a.b c"                               -> "a=2Eb=20c"
func KVKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isPlain(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "=%02X", c)
	}
	return b.String()
}

// FileName maps a validated key to a single path segment. It escapes like
// KVKey and truncates long results with a hash suffix to keep names unique.
func FileName(key string) string {
	name := KVKey(key)
	if len(name) > MaxFileNameLength {
		name = truncateWithHash(name)
	}
	return name
}

func isPlain(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// truncateWithHash truncates s to MaxFileNameLength, appending a hash of
// the full string.
//
// Format: <truncated>_<8-char-hash>
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	hashSuffix := "_" + hex.EncodeToString(hash[:])[:8]

	truncated := s[:MaxFileNameLength-HashSuffixLength]
	// Don't split an =XX escape.
	if i := strings.LastIndexByte(truncated, '='); i >= len(truncated)-2 {
		truncated = truncated[:i]
	}
	return truncated + hashSuffix
}
