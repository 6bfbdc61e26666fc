// Package addressing mints reply addresses that carry a signed record id and
// recovers verified ids from the recipients of inbound messages.
package addressing

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	rrerrors "github.com/roadrunner-server/errors"

	"github.com/roadrunner-plugins/inbound/email"
)

// Separator divides the id from its signature inside an extension.
const Separator = "."

// ErrInvalidSignature indicates an extension that no configured key and
// algorithm pair verifies.
var ErrInvalidSignature = errors.New("invalid signature")

// Keys holds the signing secret and the retired secrets still accepted for
// verification, newest first.
type Keys struct {
	Current   string
	Fallbacks []string
}

// Signer encodes ids into address extensions and decodes them back. It is
// immutable after construction and safe for concurrent use.
type Signer struct {
	keys       []string
	algorithms []Algorithm
}

// NewSigner builds a signer. algorithms are ordered strongest first; the first
// one signs. A nil list selects DefaultAlgorithms.
func NewSigner(keys Keys, algorithms []Algorithm) (*Signer, error) {
	const op = rrerrors.Op("addressing_new_signer")

	if keys.Current == "" {
		return nil, rrerrors.E(op, rrerrors.Str("empty signing key"))
	}
	if len(algorithms) == 0 {
		algorithms = DefaultAlgorithms
	}
	for _, alg := range algorithms {
		if _, ok := alg.hash(); !ok {
			return nil, rrerrors.E(op, rrerrors.Errorf("unsupported algorithm: %s", alg))
		}
	}

	s := &Signer{
		keys:       make([]string, 0, len(keys.Fallbacks)+1),
		algorithms: append([]Algorithm(nil), algorithms...),
	}
	s.keys = append(s.keys, keys.Current)
	s.keys = append(s.keys, keys.Fallbacks...)
	return s, nil
}

// Encode returns base with "+<id>.<signature>" appended to its local part,
// signed with the default algorithm and the current key.
func (s *Signer) Encode(namespace, base string, id int64) (string, error) {
	return s.EncodeWith(namespace, base, id, s.algorithms[0], s.keys[0])
}

// EncodeWith is Encode with an explicit algorithm and key.
func (s *Signer) EncodeWith(namespace, base string, id int64, alg Algorithm, key string) (string, error) {
	addr, err := email.SplitAddress(base)
	if err != nil {
		return "", err
	}
	ext, err := Extension(namespace, id, alg, key)
	if err != nil {
		return "", err
	}
	return addr.LocalPart + "+" + ext + "@" + addr.Domain, nil
}

// Extension returns "<id>.<signature>" for id.
func Extension(namespace string, id int64, alg Algorithm, key string) (string, error) {
	value := strconv.FormatInt(id, 10)
	sig, err := Sign(namespace, alg, key, value)
	if err != nil {
		return "", err
	}
	return value + Separator + sig, nil
}

// Sign computes the signature of value. The HMAC key is derived from the
// namespace and secret so that equal ids under different namespaces never
// share a signature.
func Sign(namespace string, alg Algorithm, key, value string) (string, error) {
	const op = rrerrors.Op("addressing_sign")

	h, ok := alg.hash()
	if !ok {
		return "", rrerrors.E(op, rrerrors.Errorf("unsupported algorithm: %s", alg))
	}

	derive := h()
	derive.Write([]byte(namespace + "signer" + key))

	mac := hmac.New(h, derive.Sum(nil))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Decode verifies extension and returns the id it carries. Every supported
// algorithm is tried with the current key and then each fallback key.
func (s *Signer) Decode(namespace, extension string) (int64, error) {
	idx := strings.LastIndex(extension, Separator)
	if idx < 0 {
		return 0, ErrInvalidSignature
	}
	value, sig := extension[:idx], strings.ToLower(extension[idx+len(Separator):])

	for _, alg := range s.algorithms {
		for _, key := range s.keys {
			expected, err := Sign(namespace, alg, key, value)
			if err != nil {
				continue
			}
			if subtle.ConstantTimeCompare([]byte(strings.ToLower(expected)), []byte(sig)) != 1 {
				continue
			}
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, ErrInvalidSignature
			}
			return id, nil
		}
	}
	return 0, ErrInvalidSignature
}

// Algorithms returns the configured algorithms, strongest first.
func (s *Signer) Algorithms() []Algorithm {
	return append([]Algorithm(nil), s.algorithms...)
}
