package addressing

import (
	"crypto/sha1" //nolint:gosec // legacy verification only
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/roadrunner-server/errors"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a hash used for signing extensions.
type Algorithm string

const (
	SHA512  Algorithm = "sha512"
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
	// SHA1 verifies extensions minted before the move to SHA256.
	SHA1 Algorithm = "sha1"
)

// DefaultAlgorithms is used when no list is configured: signing uses the first
// entry, verification tries all of them.
var DefaultAlgorithms = []Algorithm{SHA256, SHA1}

var hashes = map[Algorithm]func() hash.Hash{
	SHA512: sha512.New,
	SHA256: sha256.New,
	BLAKE2b: func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
	SHA1: sha1.New,
}

// ParseAlgorithms validates algorithm names, keeping their order.
func ParseAlgorithms(names []string) ([]Algorithm, error) {
	const op = errors.Op("addressing_parse_algorithms")

	if len(names) == 0 {
		return append([]Algorithm(nil), DefaultAlgorithms...), nil
	}

	algs := make([]Algorithm, 0, len(names))
	for _, name := range names {
		alg := Algorithm(name)
		if _, ok := hashes[alg]; !ok {
			return nil, errors.E(op, errors.Errorf("unsupported algorithm: %s", name))
		}
		algs = append(algs, alg)
	}
	return algs, nil
}

func (a Algorithm) hash() (func() hash.Hash, bool) {
	h, ok := hashes[a]
	return h, ok
}
