package security

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// IPHasher pseudonymises client addresses so raw IPs are never stored
type IPHasher struct {
	key []byte
}

// NewIPHasher creates a hasher keyed with secret
func NewIPHasher(secret string) *IPHasher {
	return &IPHasher{key: blakeKey(secret)}
}

// blakeKey fits secret to the BLAKE2b key size limit
func blakeKey(secret string) []byte {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return key
}

// Hash returns the hex keyed BLAKE2b-256 digest of ip
func (h *IPHasher) Hash(ip string) string {
	d, err := blake2b.New256(h.key)
	if err != nil {
		panic(err)
	}
	d.Write([]byte(ip))
	return hex.EncodeToString(d.Sum(nil))
}
