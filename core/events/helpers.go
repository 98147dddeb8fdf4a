package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"tdcchain/crypto"
)

func formatPrincipal(addr [20]byte) string {
	return crypto.FormatAddress(addr)
}

func formatTokenID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func formatRole(role [32]byte) string {
	return "0x" + hex.EncodeToString(role[:])
}
