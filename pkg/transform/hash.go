// pkg/transform/hash.go
package transform

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Algorithm names a digest used for pseudonymization
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	MD5    Algorithm = "md5"
)

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %q", string(a))
	}
}

// HashDigest returns the hex digest of the value's text form.
// Identical inputs always give identical outputs; collisions are not mitigated.
func HashDigest(value interface{}, alg Algorithm) (string, error) {
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}
	h.Write([]byte(ToText(value)))
	return hex.EncodeToString(h.Sum(nil)), nil
}
