package badges

import "fmt"

// State is the lifecycle position of a single badge. Each badge moves
// strictly forward: Unminted, Minted, Transferred, Redeemed.
type State uint8

const (
	StateUnminted State = iota
	StateMinted
	StateTransferred
	StateRedeemed
)

func (s State) String() string {
	switch s {
	case StateUnminted:
		return "unminted"
	case StateMinted:
		return "minted"
	case StateTransferred:
		return "transferred"
	case StateRedeemed:
		return "redeemed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Transferred reports whether the badge has used its single transfer.
func (s State) Transferred() bool {
	return s == StateTransferred || s == StateRedeemed
}

// Redeemed reports whether the badge has been burned for a coin.
func (s State) Redeemed() bool {
	return s == StateRedeemed
}

// Badge is the read model of one badge.
type Badge struct {
	ID    uint64
	Owner [20]byte
	State State
}
