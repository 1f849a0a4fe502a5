package csrf

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func testKey() string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("k", MinKeyBytes)))
}

func TestRoundTrip(t *testing.T) {
	s, err := NewSigner(testKey(), time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	tok, err := s.Generate("sess-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !s.Verify(tok, "sess-1") {
		t.Fatal("token should verify for its own session")
	}
	if s.Verify(tok, "sess-2") {
		t.Fatal("token must not verify for another session")
	}
	if s.Ephemeral() {
		t.Fatal("configured key reported as ephemeral")
	}
}

func TestRejectsTampering(t *testing.T) {
	s, _ := NewSigner(testKey(), time.Hour)
	tok, _ := s.Generate("sess-1")

	raw, _ := base64.RawURLEncoding.DecodeString(tok)
	raw[len(raw)-1] ^= 0xff
	bad := base64.RawURLEncoding.EncodeToString(raw)

	for _, tc := range []string{"", "not-base64!", tok[:10], bad} {
		if s.Verify(tc, "sess-1") {
			t.Errorf("Verify(%q) = true, want false", tc)
		}
	}
}

func TestRejectsOtherKey(t *testing.T) {
	a, _ := NewSigner(testKey(), time.Hour)
	b, _ := NewSigner("", time.Hour)
	tok, _ := a.Generate("sess-1")
	if b.Verify(tok, "sess-1") {
		t.Fatal("token verified under a different key")
	}
	if !b.Ephemeral() {
		t.Fatal("empty key should produce an ephemeral signer")
	}
}

func TestExpiry(t *testing.T) {
	s, _ := NewSigner(testKey(), time.Minute)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	tok, _ := s.Generate("sess-1")

	s.now = func() time.Time { return base.Add(30 * time.Second) }
	if !s.Verify(tok, "sess-1") {
		t.Fatal("token inside max age should verify")
	}
	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if s.Verify(tok, "sess-1") {
		t.Fatal("expired token verified")
	}
	s.now = func() time.Time { return base.Add(-5 * time.Minute) }
	if s.Verify(tok, "sess-1") {
		t.Fatal("future-dated token verified")
	}
}

func TestShortKeyRejected(t *testing.T) {
	short := base64.RawURLEncoding.EncodeToString([]byte("short"))
	if _, err := NewSigner(short, 0); err == nil {
		t.Fatal("expected error for short key")
	}
	padded := base64.URLEncoding.EncodeToString([]byte(strings.Repeat("p", 33)))
	if _, err := NewSigner(padded, 0); err != nil {
		t.Fatalf("padded key should decode: %v", err)
	}
}
