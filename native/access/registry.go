package access

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"tdcchain/core/events"
	"tdcchain/crypto"
	nativecommon "tdcchain/native/common"
)

var (
	ErrUnauthorized   = fmt.Errorf("access: %w", nativecommon.ErrUnauthorized)
	ErrZeroAccount    = fmt.Errorf("access: %w: zero account", nativecommon.ErrInvalidRecipient)
	ErrRenounceOthers = fmt.Errorf("access: %w: can only renounce roles for self", nativecommon.ErrUnauthorized)
)

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Registry stores role membership for one ledger. Checks always read current
// state; nothing is cached between calls.
type Registry struct {
	st      registryState
	ledger  [20]byte
	emitter events.Emitter
}

// NewRegistry returns the role registry of the ledger at address ledger.
func NewRegistry(st registryState, ledger [20]byte) *Registry {
	return &Registry{st: st, ledger: ledger, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used to broadcast role changes.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func membersKey(ledger [20]byte, role [32]byte) []byte {
	return []byte(fmt.Sprintf("access/%x/role/%x", ledger, role))
}

func (r *Registry) loadMembers(role [32]byte) ([][]byte, error) {
	var members [][]byte
	if _, err := r.st.KVGet(membersKey(r.ledger, role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *Registry) storeMembers(role [32]byte, members [][]byte) error {
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i], members[j]) < 0
	})
	return r.st.KVPut(membersKey(r.ledger, role), members)
}

// HasRole reports whether account currently holds role. Errors while reading
// state result in false.
func (r *Registry) HasRole(role [32]byte, account [20]byte) bool {
	members, err := r.loadMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, account[:]) {
			return true
		}
	}
	return false
}

// Members returns the holders of role in ascending byte order.
func (r *Registry) Members(role [32]byte) ([][20]byte, error) {
	members, err := r.loadMembers(role)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}

// RoleAdmin returns the role whose holders may grant and revoke role.
func (r *Registry) RoleAdmin(role [32]byte) [32]byte {
	return DefaultAdminRole
}

// Require is the capability check run at the top of every gated operation.
func (r *Registry) Require(role [32]byte, account [20]byte) error {
	if r.HasRole(role, account) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, crypto.FormatAddress(account), RoleName(role))
}

// Grant adds account to role. The caller must hold the role's admin role.
// Granting an existing membership is a no-op.
func (r *Registry) Grant(caller [20]byte, role [32]byte, account [20]byte) error {
	if err := r.Require(r.RoleAdmin(role), caller); err != nil {
		return err
	}
	return r.grant(caller, role, account)
}

// Revoke removes account from role. The caller must hold the role's admin
// role. Revoking a missing membership is a no-op.
func (r *Registry) Revoke(caller [20]byte, role [32]byte, account [20]byte) error {
	if err := r.Require(r.RoleAdmin(role), caller); err != nil {
		return err
	}
	return r.revoke(caller, role, account)
}

// Renounce lets a holder drop one of its own roles.
func (r *Registry) Renounce(caller [20]byte, role [32]byte, account [20]byte) error {
	if caller != account {
		return ErrRenounceOthers
	}
	return r.revoke(caller, role, account)
}

// Bootstrap assigns the admin capability to admins without an authorising
// caller. It is only reachable from ledger deployment.
func (r *Registry) Bootstrap(admins [][20]byte) error {
	if len(admins) == 0 {
		return errors.New("access: at least one admin required")
	}
	for _, admin := range admins {
		if err := r.grant([20]byte{}, DefaultAdminRole, admin); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) grant(sender [20]byte, role [32]byte, account [20]byte) error {
	if account == ([20]byte{}) {
		return ErrZeroAccount
	}
	members, err := r.loadMembers(role)
	if err != nil {
		return err
	}
	for _, member := range members {
		if bytes.Equal(member, account[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), account[:]...))
	if err := r.storeMembers(role, members); err != nil {
		return err
	}
	r.emitter.Emit(events.RoleGranted{Ledger: r.ledger, Role: role, Account: account, Sender: sender})
	return nil
}

func (r *Registry) revoke(sender [20]byte, role [32]byte, account [20]byte) error {
	members, err := r.loadMembers(role)
	if err != nil {
		return err
	}
	kept := members[:0]
	removed := false
	for _, member := range members {
		if bytes.Equal(member, account[:]) {
			removed = true
			continue
		}
		kept = append(kept, member)
	}
	if !removed {
		return nil
	}
	if err := r.storeMembers(role, kept); err != nil {
		return err
	}
	r.emitter.Emit(events.RoleRevoked{Ledger: r.ledger, Role: role, Account: account, Sender: sender})
	return nil
}
