package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/pdabank/pdabank/internal/identity"
)

var (
	ErrMissingSignature = errors.New("missing signature headers")
	ErrInvalidSignature = errors.New("signature mismatch")
	ErrStaleTimestamp   = errors.New("timestamp outside allowed window")
)

// CanonicalMessage builds the byte string a caller signs for one request:
// method, path, unix timestamp and the hex BLAKE2b-256 digest of the body,
// separated by newlines.
func CanonicalMessage(method, path string, ts int64, body []byte) []byte {
	digest := blake2b.Sum256(body)
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(digest[:]))
	return []byte(b.String())
}

// Sign returns the base58 ed25519 signature over the canonical message.
func Sign(priv ed25519.PrivateKey, method, path string, ts int64, body []byte) string {
	return base58.Encode(ed25519.Sign(priv, CanonicalMessage(method, path, ts, body)))
}

// Verify checks a base58 signature produced by Sign for the given identity.
func Verify(id identity.Identity, signature, method, path string, ts int64, body []byte) error {
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(id.PublicKey(), CanonicalMessage(method, path, ts, body), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// CheckTimestamp rejects timestamps further than maxSkew from now in either
// direction. A non-positive maxSkew disables the check.
func CheckTimestamp(ts int64, now time.Time, maxSkew time.Duration) error {
	if maxSkew <= 0 {
		return nil
	}
	delta := now.Sub(time.Unix(ts, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > maxSkew {
		return ErrStaleTimestamp
	}
	return nil
}
