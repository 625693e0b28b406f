package crypto

import (
	"bytes"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}

	zero := make([]byte, n)
	if bytes.Equal(a, zero) {
		t.Fatalf("RandBytes returned all zeros")
	}
}

func TestHashSecret_DeterministicOnSameInput(t *testing.T) {
	t.Parallel()

	pw := []byte("p@ssw0rd")
	salt := []byte("NaCl-16-bytes?")

	h1 := HashSecret(pw, salt)
	h2 := HashSecret(pw, salt)

	if len(h1) == 0 || len(h2) == 0 {
		t.Fatalf("empty hash")
	}
	if !bytes.Equal(h1, h2) {
		t.Fatalf("hash not deterministic for same input")
	}

	h3 := HashSecret(pw, []byte("another-salt----"))
	if bytes.Equal(h1, h3) {
		t.Fatalf("hash should differ when salt differs")
	}

	h4 := HashSecret([]byte("p@ssw0rd!"), salt)
	if bytes.Equal(h1, h4) {
		t.Fatalf("hash should differ when password differs")
	}
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	pw := []byte("correct horse battery staple")
	salt := []byte("salty-salt-123456")

	hash := HashSecret(pw, salt)

	if !VerifySecret(pw, salt, hash) {
		t.Fatalf("VerifySecret: expected true for correct secret")
	}
	if VerifySecret([]byte("wrong"), salt, hash) {
		t.Fatalf("VerifySecret: expected false for wrong secret")
	}
	if VerifySecret(pw, []byte("wrong-salt"), hash) {
		t.Fatalf("VerifySecret: expected false for wrong salt")
	}
	if VerifySecret([]byte{}, salt, hash) {
		t.Fatalf("VerifySecret: expected false for empty secret")
	}
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(a) != TokenLen {
		t.Fatalf("token len=%d, want=%d", len(a), TokenLen)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken(2): %v", err)
	}
	if a == b {
		t.Fatalf("two subsequent tokens are equal")
	}
}
