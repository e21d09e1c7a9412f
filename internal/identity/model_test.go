package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) Identity {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := FromPublicKey(pub)
	require.NoError(t, err)
	return id
}

func TestParseIdentityRoundTrip(t *testing.T) {
	id := newIdentity(t)

	parsed, err := ParseIdentity(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.False(t, parsed.IsZero())
}

func TestParseIdentityRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "0OIl", "3mJr7AoUXx2Wqd"} {
		_, err := ParseIdentity(in)
		require.Truef(t, errors.Is(err, ErrInvalidIdentity), "input %q: %v", in, err)
	}
}

func TestDeriveAddressDeterministicPerOwner(t *testing.T) {
	a := newIdentity(t)
	b := newIdentity(t)

	require.Equal(t, DeriveAddress(a, DefaultDomainTag), DeriveAddress(a, DefaultDomainTag))
	require.NotEqual(t, DeriveAddress(a, DefaultDomainTag), DeriveAddress(b, DefaultDomainTag))
	require.NotEqual(t, DeriveAddress(a, DefaultDomainTag), DeriveAddress(a, "othertag"))
}

func TestIdentityJSON(t *testing.T) {
	id := newIdentity(t)
	payload, err := json.Marshal(struct {
		Owner Identity `json:"owner"`
	}{Owner: id})
	require.NoError(t, err)

	var decoded struct {
		Owner Identity `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, id, decoded.Owner)
}
