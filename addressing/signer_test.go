package addressing

import (
	"errors"
	"strings"
	"testing"

	"github.com/roadrunner-plugins/inbound/email"
)

const base = "support@example.com"

func newSigner(t *testing.T, keys Keys, algs ...Algorithm) *Signer {
	t.Helper()
	s, err := NewSigner(keys, algs)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return s
}

// extensionOf returns the part of addr between the first "+" and the "@".
func extensionOf(t *testing.T, addr string) string {
	t.Helper()
	a, err := email.SplitAddress(addr)
	if err != nil {
		t.Fatalf("SplitAddress(%q): %v", addr, err)
	}
	_, ext, ok := strings.Cut(a.LocalPart, "+")
	if !ok {
		t.Fatalf("no extension in %q", addr)
	}
	return ext
}

func TestSigner_RoundTrip(t *testing.T) {
	namespaces := []string{"ticket-reply", "add-forge-now", ""}
	ids := []int64{0, 1, 7, 42, 1 << 40, 9223372036854775807}
	algs := []Algorithm{SHA512, SHA256, BLAKE2b, SHA1}

	for _, alg := range algs {
		s := newSigner(t, Keys{Current: "secret"}, alg)
		for _, ns := range namespaces {
			for _, id := range ids {
				addr, err := s.Encode(ns, base, id)
				if err != nil {
					t.Fatalf("Encode(%s, %d): %v", ns, id, err)
				}
				got, err := s.Decode(ns, extensionOf(t, addr))
				if err != nil {
					t.Fatalf("%s: Decode(%s) of %d: %v", alg, ns, id, err)
				}
				if got != id {
					t.Fatalf("%s: Decode = %d, want %d", alg, got, id)
				}
			}
		}
	}
}

func TestSigner_EncodeShape(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	addr, err := s.Encode("ns", "Support@Example.com", 7)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasPrefix(addr, "Support+7.") || !strings.HasSuffix(addr, "@Example.com") {
		t.Fatalf("unexpected address %q", addr)
	}
}

func TestSigner_EncodeInvalidAddress(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	if _, err := s.Encode("ns", "no-at-sign", 1); !errors.Is(err, email.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestSigner_DecodeIsCaseInsensitive(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	ext, err := Extension("ns", 99, SHA256, "secret")
	if err != nil {
		t.Fatal(err)
	}
	for _, variant := range []string{strings.ToLower(ext), strings.ToUpper(ext)} {
		id, err := s.Decode("ns", variant)
		if err != nil || id != 99 {
			t.Fatalf("Decode(%q) = %d, %v", variant, id, err)
		}
	}
}

func TestSigner_DecodeRejects(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	valid, err := Extension("ns", 5, SHA256, "secret")
	if err != nil {
		t.Fatal(err)
	}
	_, sig, _ := strings.Cut(valid, Separator)

	tests := []struct {
		name string
		ns   string
		ext  string
	}{
		{name: "no separator", ns: "ns", ext: "5" + sig},
		{name: "empty", ns: "ns", ext: ""},
		{name: "other namespace", ns: "other", ext: valid},
		{name: "other value", ns: "ns", ext: "6" + Separator + sig},
		{name: "empty signature", ns: "ns", ext: "5" + Separator},
		{name: "unknown key", ns: "ns", ext: mustExtension(t, "ns", 5, SHA256, "attacker")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Decode(tt.ns, tt.ext); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestSigner_ForgedSignature(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	valid := mustExtension(t, "ns", 1234, SHA256, "secret")
	idx := strings.LastIndex(valid, Separator) + 1

	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := idx; i < len(valid); i++ {
		orig := strings.ToLower(valid[i : i+1])
		for _, c := range alphabet {
			if string(c) == orig {
				continue
			}
			forged := valid[:i] + string(c) + valid[i+1:]
			if _, err := s.Decode("ns", forged); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("forged extension %q accepted", forged)
			}
			break
		}
	}
}

func TestSigner_KeyRotation(t *testing.T) {
	old := newSigner(t, Keys{Current: "old-key"})
	addr, err := old.Encode("ns", base, 77)
	if err != nil {
		t.Fatal(err)
	}
	ext := extensionOf(t, addr)

	rotated := newSigner(t, Keys{Current: "new-key", Fallbacks: []string{"older-key", "old-key"}})
	if id, err := rotated.Decode("ns", ext); err != nil || id != 77 {
		t.Fatalf("rotated Decode = %d, %v; want 77", id, err)
	}

	dropped := newSigner(t, Keys{Current: "new-key", Fallbacks: []string{"older-key"}})
	if _, err := dropped.Decode("ns", ext); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature after dropping the key, got %v", err)
	}
}

func TestSigner_LegacyAlgorithm(t *testing.T) {
	legacy := mustExtension(t, "ns", 3, SHA1, "secret")

	s := newSigner(t, Keys{Current: "secret"}, SHA256, SHA1)
	if id, err := s.Decode("ns", legacy); err != nil || id != 3 {
		t.Fatalf("Decode legacy = %d, %v", id, err)
	}

	strict := newSigner(t, Keys{Current: "secret"}, SHA256)
	if _, err := strict.Decode("ns", legacy); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature without sha1, got %v", err)
	}
}

func TestSigner_NonIntegerValue(t *testing.T) {
	s := newSigner(t, Keys{Current: "secret"})
	sig, err := Sign("ns", SHA256, "secret", "abc")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Decode("ns", "abc"+Separator+sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestNewSigner_Validation(t *testing.T) {
	if _, err := NewSigner(Keys{}, nil); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := NewSigner(Keys{Current: "k"}, []Algorithm{"md5"}); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	s := newSigner(t, Keys{Current: "k"})
	if algs := s.Algorithms(); len(algs) != 2 || algs[0] != SHA256 || algs[1] != SHA1 {
		t.Fatalf("default algorithms = %v", algs)
	}
}

func TestParseAlgorithms(t *testing.T) {
	algs, err := ParseAlgorithms([]string{"blake2b", "sha256"})
	if err != nil {
		t.Fatalf("ParseAlgorithms: %v", err)
	}
	if len(algs) != 2 || algs[0] != BLAKE2b || algs[1] != SHA256 {
		t.Fatalf("ParseAlgorithms = %v", algs)
	}
	if _, err := ParseAlgorithms([]string{"crc32"}); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if algs, _ := ParseAlgorithms(nil); len(algs) != len(DefaultAlgorithms) {
		t.Fatalf("nil list should select defaults, got %v", algs)
	}
}

func mustExtension(t *testing.T, ns string, id int64, alg Algorithm, key string) string {
	t.Helper()
	ext, err := Extension(ns, id, alg, key)
	if err != nil {
		t.Fatalf("Extension: %v", err)
	}
	return ext
}
