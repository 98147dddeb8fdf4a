package events

import "tdcchain/core/types"

const (
	// TypeLedgerLinked records a badge ledger being wired to a collectibles
	// or coins ledger.
	TypeLedgerLinked = "badges.ledgerLinked"
	// TypeBadgeRedeemed accompanies the burn transfer of a redeemed badge.
	TypeBadgeRedeemed = "badges.redeemed"
)

type LedgerLinked struct {
	Ledger [20]byte
	Kind   string
	Target [20]byte
}

func (LedgerLinked) EventType() string { return TypeLedgerLinked }

func (e LedgerLinked) Event() *types.Event {
	return &types.Event{
		Type: TypeLedgerLinked,
		Attributes: map[string]string{
			"ledger": formatPrincipal(e.Ledger),
			"kind":   e.Kind,
			"target": formatPrincipal(e.Target),
		},
	}
}

type BadgeRedeemed struct {
	Ledger      [20]byte
	TokenID     uint64
	Redeemer    [20]byte
	CoinsLedger [20]byte
	Reward      uint64
}

func (BadgeRedeemed) EventType() string { return TypeBadgeRedeemed }

func (e BadgeRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeBadgeRedeemed,
		Attributes: map[string]string{
			"ledger":   formatPrincipal(e.Ledger),
			"tokenId":  formatTokenID(e.TokenID),
			"redeemer": formatPrincipal(e.Redeemer),
			"coins":    formatPrincipal(e.CoinsLedger),
			"reward":   formatTokenID(e.Reward),
		},
	}
}
