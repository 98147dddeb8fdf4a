package events

import (
	"math/big"

	"tdcchain/core/types"
)

const (
	// TypeTokenTransfer is emitted for every ownership change of a badge or
	// collectible, including mint (from = zero) and burn (to = zero).
	TypeTokenTransfer = "token.transfer"
	// TypeCoinTransfer is emitted for coin balance movements. Coins are only
	// minted, so From is always the zero address.
	TypeCoinTransfer = "coin.transfer"
)

type TokenTransfer struct {
	Ledger  [20]byte
	From    [20]byte
	To      [20]byte
	TokenID uint64
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"ledger":  formatPrincipal(e.Ledger),
			"from":    formatPrincipal(e.From),
			"to":      formatPrincipal(e.To),
			"tokenId": formatTokenID(e.TokenID),
		},
	}
}

type CoinTransfer struct {
	Ledger [20]byte
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (CoinTransfer) EventType() string { return TypeCoinTransfer }

func (e CoinTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeCoinTransfer,
		Attributes: map[string]string{
			"ledger": formatPrincipal(e.Ledger),
			"from":   formatPrincipal(e.From),
			"to":     formatPrincipal(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}
