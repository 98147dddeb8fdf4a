package access

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	MinterRoleName       = "MINTER_ROLE"
	DefaultAdminRoleName = "DEFAULT_ADMIN_ROLE"
)

var (
	// MinterRole authorises mint calls on every ledger kind.
	MinterRole = RoleID(MinterRoleName)
	// DefaultAdminRole is the admin capability: it administers every role,
	// including itself, and gates ledger configuration.
	DefaultAdminRole [32]byte
)

// RoleID derives the 32-byte identifier for a role name (keccak256 of the
// UTF-8 name).
func RoleID(name string) [32]byte {
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte(name)))
	return id
}

// ParseRole accepts a well-known role name, any other name (hashed with
// RoleID) or a 0x-prefixed 32-byte hex identifier.
func ParseRole(value string) ([32]byte, error) {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return [32]byte{}, fmt.Errorf("access: role required")
	case strings.EqualFold(trimmed, DefaultAdminRoleName):
		return DefaultAdminRole, nil
	case strings.HasPrefix(trimmed, "0x"):
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil || len(raw) != 32 {
			return [32]byte{}, fmt.Errorf("access: invalid role id %q", trimmed)
		}
		var id [32]byte
		copy(id[:], raw)
		return id, nil
	default:
		return RoleID(strings.ToUpper(trimmed)), nil
	}
}

// RoleName renders a role for logs and errors.
func RoleName(role [32]byte) string {
	switch role {
	case DefaultAdminRole:
		return DefaultAdminRoleName
	case MinterRole:
		return MinterRoleName
	default:
		return "0x" + hex.EncodeToString(role[:])
	}
}
