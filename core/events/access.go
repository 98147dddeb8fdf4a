package events

import "tdcchain/core/types"

const (
	TypeRoleGranted = "access.roleGranted"
	TypeRoleRevoked = "access.roleRevoked"
)

type RoleGranted struct {
	Ledger  [20]byte
	Role    [32]byte
	Account [20]byte
	Sender  [20]byte
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleGranted,
		Attributes: map[string]string{
			"ledger":  formatPrincipal(e.Ledger),
			"role":    formatRole(e.Role),
			"account": formatPrincipal(e.Account),
			"sender":  formatPrincipal(e.Sender),
		},
	}
}

type RoleRevoked struct {
	Ledger  [20]byte
	Role    [32]byte
	Account [20]byte
	Sender  [20]byte
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleRevoked,
		Attributes: map[string]string{
			"ledger":  formatPrincipal(e.Ledger),
			"role":    formatRole(e.Role),
			"account": formatPrincipal(e.Account),
			"sender":  formatPrincipal(e.Sender),
		},
	}
}
