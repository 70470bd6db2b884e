package access

import (
	"github.com/eigerco/custodian/internal/crypto"
)

// Role identifies a role by a 32 byte id, usually the keccak of its name.
type Role crypto.Hash

// DefaultAdminRole is the all zero role. It administers itself and, unless
// changed, every other role.
var DefaultAdminRole Role

func RoleFromName(name string) Role {
	return Role(crypto.KeccakData([]byte(name)))
}

func (r Role) Hex() string {
	return crypto.Hash(r).Hex()
}

func (r Role) String() string {
	return r.Hex()
}

func (r Role) MarshalText() ([]byte, error) {
	return crypto.Hash(r).MarshalText()
}

func (r *Role) UnmarshalText(text []byte) error {
	return (*crypto.Hash)(r).UnmarshalText(text)
}
