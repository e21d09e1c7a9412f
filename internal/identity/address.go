package identity

import "golang.org/x/crypto/blake2b"

// DefaultDomainTag namespaces account record addresses.
const DefaultDomainTag = "bankaccount"

const addressMarker = "record-address"

// DeriveAddress maps an owner to its record slot under the given domain tag.
// The result depends only on the tag and the owner, so each owner has exactly
// one record per tag.
func DeriveAddress(owner Identity, domainTag string) Address {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(domainTag))
	h.Write(owner[:])
	h.Write([]byte(addressMarker))

	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}
