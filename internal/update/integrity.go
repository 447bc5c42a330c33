package update

import (
	_ "crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// HashFile streams path through sha256 and returns the lowercase hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return d.Encoded(), nil
}

// HashBytes returns the lowercase hex sha256 digest of b.
func HashBytes(b []byte) string {
	return digest.SHA256.FromBytes(b).Encoded()
}

// VerifyFile reports whether path hashes to expected, ignoring case and an
// optional "sha256:" prefix. Any error yields false.
func VerifyFile(path, expected string) bool {
	got, err := HashFile(path)
	if err != nil {
		return false
	}
	return strings.EqualFold(got, normalizeHash(expected))
}

func normalizeHash(h string) string {
	h = strings.TrimSpace(h)
	if i := strings.IndexByte(h, ':'); i >= 0 && strings.EqualFold(h[:i], string(digest.SHA256)) {
		h = h[i+1:]
	}
	return h
}
