package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is the byte length of both identities and record addresses.
const Size = 32

var (
	// ErrInvalidIdentity is returned when an identity string is not a base58 encoded 32-byte key.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidAddress is returned when an address string is not a base58 encoded 32-byte value.
	ErrInvalidAddress = errors.New("invalid address")
)

// Identity is the principal used for ownership and authorization checks. It is
// the raw ed25519 public key of the caller.
type Identity [Size]byte

// Address identifies the slot a record is stored under.
type Address [Size]byte

// FromPublicKey converts an ed25519 public key into an Identity.
func FromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	var id Identity
	if len(pub) != ed25519.PublicKeySize {
		return id, fmt.Errorf("%w: public key length %d", ErrInvalidIdentity, len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

// ParseIdentity decodes a base58 identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := decode(s)
	if err != nil || len(raw) != Size {
		return id, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	copy(id[:], raw)
	return id, nil
}

// ParseAddress decodes a base58 record address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	raw, err := decode(s)
	if err != nil || len(raw) != Size {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(addr[:], raw)
	return addr, nil
}

func decode(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty")
	}
	return base58.Decode(s)
}

// PublicKey returns the identity as an ed25519 public key.
func (id Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id[:])
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
