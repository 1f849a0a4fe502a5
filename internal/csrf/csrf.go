// internal/csrf/csrf.go
//
// Intake – stateless CSRF tokens bound to an intake session.
//
// Context
//   Creating an intake session returns a token the browser must echo in the
//   X-CSRF-Token header on every mutating call.  The token is stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(key, nonce+unixMicro+sessionID) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – issue time, 8 bytes, big-endian.
//   •  HMAC – binds the token to one session id so a token lifted from one
//      session cannot drive another.
//
//   Verify checks the signature and that the timestamp is inside MaxAge.
//
// Workflow
//   •  NewSigner(key, maxAge)      → build once at startup.
//   •  Generate(sessionID)         → token for the create-session response.
//   •  Verify(tok, sessionID)      → constant-time; false on any failure.
//
//------------------------------------------------------------------------------

package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	nonceBytes = 16
	tokenBytes = nonceBytes + 8 + sha256.Size // nonce + ts + sig

	// MinKeyBytes is the shortest accepted signing key.
	MinKeyBytes = 32

	// DefaultMaxAge is used when NewSigner gets a zero maxAge.
	DefaultMaxAge = 2 * time.Hour
)

// Signer issues and checks tokens.  Safe for concurrent use.
type Signer struct {
	key       []byte
	maxAge    time.Duration
	now       func() time.Time
	ephemeral bool
}

// NewSigner decodes a base64url key (padding optional).  An empty key
// yields a random one; tokens then stop verifying after a restart, and
// Ephemeral reports true so the caller can warn.
func NewSigner(encodedKey string, maxAge time.Duration) (*Signer, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	s := &Signer{maxAge: maxAge, now: time.Now}

	if encodedKey == "" {
		s.key = make([]byte, MinKeyBytes)
		if _, err := rand.Read(s.key); err != nil {
			return nil, fmt.Errorf("csrf: random key: %w", err)
		}
		s.ephemeral = true
		return s, nil
	}

	key, err := base64.RawURLEncoding.DecodeString(trimPad(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("csrf: decode key: %w", err)
	}
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("csrf: key is %d bytes, need at least %d", len(key), MinKeyBytes)
	}
	s.key = key
	return s, nil
}

// Ephemeral reports whether the key was generated at startup.
func (s *Signer) Ephemeral() bool { return s.ephemeral }

// Generate returns a fresh token for sessionID.
func (s *Signer) Generate(sessionID string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(s.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, s.sign(nonce, ts, sessionID)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify returns true if tok was issued for sessionID by this key and is
// not older than maxAge.
func (s *Signer) Verify(tok, sessionID string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:nonceBytes]
	tsBytes := raw[nonceBytes : nonceBytes+8]
	sig := raw[nonceBytes+8:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	now := s.now()
	if now.Sub(issued) > s.maxAge || issued.Sub(now) > time.Minute {
		// Expired, or issued in the future beyond clock skew.
		return false
	}

	return hmac.Equal(sig, s.sign(nonce, tsBytes, sessionID))
}

func (s *Signer) sign(nonce, ts []byte, sessionID string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(nonce)
	mac.Write(ts)
	mac.Write([]byte(sessionID))
	return mac.Sum(nil)
}

func trimPad(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
