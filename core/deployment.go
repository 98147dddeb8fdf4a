package core

import (
	"fmt"
	"regexp"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/unicode/norm"

	"tdcchain/crypto"
)

// Kind identifies which engine serves a deployed ledger.
type Kind string

const (
	KindBadges       Kind = "badges"
	KindCollectibles Kind = "collectibles"
	KindCoins        Kind = "coins"
)

var ledgerNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// ParseKind normalises a kind string.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindBadges, KindCollectibles, KindCoins:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// Deployment is the persisted record of one ledger instance.
type Deployment struct {
	Name    string
	Kind    Kind
	Address [20]byte
}

// Principal renders the ledger address in bech32 form.
func (d Deployment) Principal() string {
	return crypto.FormatAddress(d.Address)
}

// LedgerAddress derives the deterministic address of the ledger called name.
func LedgerAddress(name string) [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("tdc/ledger/" + name))
	copy(addr[:], hash[12:])
	return addr
}

// NormalizeLedgerName folds name to the canonical form used for addressing:
// NFKC, lower case, no surrounding space.
func NormalizeLedgerName(name string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
}

func validateLedgerName(name string) error {
	if !ledgerNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidLedgerName, name)
	}
	return nil
}

type storedDeployment struct {
	Name    string
	Kind    string
	Address [20]byte
}
