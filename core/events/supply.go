package events

import (
	"math/big"

	"tdcchain/core/types"
)

const (
	// TypeCoinSupply is emitted whenever the coin supply changes.
	TypeCoinSupply = "coin.supply"

	// SupplyReasonRedemption marks supply created as a badge redemption reward.
	SupplyReasonRedemption = "redemption"
	// SupplyReasonMint marks supply created by a direct minter call.
	SupplyReasonMint = "mint"
)

// CoinSupply captures a supply delta on a coin ledger.
type CoinSupply struct {
	Ledger [20]byte
	Total  *big.Int
	Delta  *big.Int
	Reason string
}

func (CoinSupply) EventType() string { return TypeCoinSupply }

// Event renders the structured supply change event for downstream consumers.
func (e CoinSupply) Event() *types.Event {
	reason := e.Reason
	if reason == "" {
		reason = SupplyReasonMint
	}
	return &types.Event{
		Type: TypeCoinSupply,
		Attributes: map[string]string{
			"ledger": formatPrincipal(e.Ledger),
			"total":  formatAmount(e.Total),
			"delta":  formatAmount(e.Delta),
			"reason": reason,
		},
	}
}
