package nft

import (
	"fmt"

	nativecommon "tdcchain/native/common"
)

var (
	ErrTokenNotFound = fmt.Errorf("nft: token %w", nativecommon.ErrNotFound)
	ErrNotOwner      = fmt.Errorf("nft: %w", nativecommon.ErrNotOwner)
	ErrZeroRecipient = fmt.Errorf("nft: %w: zero address", nativecommon.ErrInvalidRecipient)
	ErrBurned        = fmt.Errorf("nft: token burned: %w", nativecommon.ErrNotFound)
)

// Interface identifiers answered by SupportsInterface (ERC-165).
var (
	InterfaceERC165      = [4]byte{0x01, 0xff, 0xc9, 0xa7}
	InterfaceERC721      = [4]byte{0x80, 0xac, 0x58, 0xcd}
	InterfaceERC721Meta  = [4]byte{0x5b, 0x5e, 0x13, 0x9f}
	InterfaceAccessCtrl  = [4]byte{0x79, 0x65, 0xdb, 0x0b}
	supportedInterfaceID = map[[4]byte]bool{
		InterfaceERC165:     true,
		InterfaceERC721:     true,
		InterfaceERC721Meta: true,
		InterfaceAccessCtrl: true,
	}
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Token is the stored ownership record. The zero owner marks a burned token.
type Token struct {
	Owner [20]byte
}

// Ledger is the ownership store shared by every non-fungible ledger kind.
// It performs no authorisation: engines layer role checks and lifecycle
// rules on top.
type Ledger struct {
	st      ledgerState
	address [20]byte
}

// NewLedger binds the store of the ledger deployed at address.
func NewLedger(st ledgerState, address [20]byte) *Ledger {
	return &Ledger{st: st, address: address}
}

// Address returns the ledger address that namespaces the store.
func (l *Ledger) Address() [20]byte { return l.address }

func (l *Ledger) tokenKey(id uint64) []byte {
	return []byte(fmt.Sprintf("nft/%x/token/%d", l.address, id))
}

func (l *Ledger) balanceKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("nft/%x/balance/%x", l.address, owner))
}

func (l *Ledger) mintedKey() []byte {
	return []byte(fmt.Sprintf("nft/%x/minted", l.address))
}

func (l *Ledger) burnedKey() []byte {
	return []byte(fmt.Sprintf("nft/%x/burned", l.address))
}

func (l *Ledger) counter(key []byte) (uint64, error) {
	var value uint64
	if _, err := l.st.KVGet(key, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (l *Ledger) adjustBalance(owner [20]byte, delta int) error {
	balance, err := l.BalanceOf(owner)
	if err != nil {
		return err
	}
	if delta < 0 {
		if balance == 0 {
			return fmt.Errorf("nft: balance underflow for %x", owner)
		}
		balance--
	} else {
		balance++
	}
	return l.st.KVPut(l.balanceKey(owner), balance)
}

// Minted returns how many identifiers have been assigned. It is also the next
// identifier to be minted.
func (l *Ledger) Minted() (uint64, error) {
	return l.counter(l.mintedKey())
}

// TotalSupply returns the number of tokens in existence (minted minus burned).
func (l *Ledger) TotalSupply() (uint64, error) {
	minted, err := l.Minted()
	if err != nil {
		return 0, err
	}
	burned, err := l.counter(l.burnedKey())
	if err != nil {
		return 0, err
	}
	return minted - burned, nil
}

// Exists reports whether id was ever minted. Burned tokens still exist as
// audit records.
func (l *Ledger) Exists(id uint64) (bool, error) {
	minted, err := l.Minted()
	if err != nil {
		return false, err
	}
	return id < minted, nil
}

// Token loads the ownership record of id.
func (l *Ledger) Token(id uint64) (*Token, error) {
	token := new(Token)
	ok, err := l.st.KVGet(l.tokenKey(id), token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	return token, nil
}

// OwnerOf returns the current owner, or the zero address for a burned token.
func (l *Ledger) OwnerOf(id uint64) ([20]byte, error) {
	token, err := l.Token(id)
	if err != nil {
		return [20]byte{}, err
	}
	return token.Owner, nil
}

// BalanceOf returns how many live tokens owner holds.
func (l *Ledger) BalanceOf(owner [20]byte) (uint64, error) {
	return l.counter(l.balanceKey(owner))
}

// Mint assigns the next sequential identifier to to.
func (l *Ledger) Mint(to [20]byte) (uint64, error) {
	if to == ([20]byte{}) {
		return 0, ErrZeroRecipient
	}
	id, err := l.Minted()
	if err != nil {
		return 0, err
	}
	if err := l.st.KVPut(l.tokenKey(id), &Token{Owner: to}); err != nil {
		return 0, err
	}
	if err := l.st.KVPut(l.mintedKey(), id+1); err != nil {
		return 0, err
	}
	if err := l.adjustBalance(to, 1); err != nil {
		return 0, err
	}
	return id, nil
}

// Move transfers id from from to to. from must be the current owner.
func (l *Ledger) Move(from, to [20]byte, id uint64) error {
	token, err := l.Token(id)
	if err != nil {
		return err
	}
	if token.Owner == ([20]byte{}) {
		return fmt.Errorf("%w: %d", ErrBurned, id)
	}
	if token.Owner != from {
		return ErrNotOwner
	}
	if to == ([20]byte{}) {
		return ErrZeroRecipient
	}
	token.Owner = to
	if err := l.st.KVPut(l.tokenKey(id), token); err != nil {
		return err
	}
	if err := l.adjustBalance(from, -1); err != nil {
		return err
	}
	return l.adjustBalance(to, 1)
}

// Burn clears the owner of id and returns the previous owner.
func (l *Ledger) Burn(id uint64) ([20]byte, error) {
	token, err := l.Token(id)
	if err != nil {
		return [20]byte{}, err
	}
	previous := token.Owner
	if previous == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("%w: %d", ErrBurned, id)
	}
	token.Owner = [20]byte{}
	if err := l.st.KVPut(l.tokenKey(id), token); err != nil {
		return [20]byte{}, err
	}
	if err := l.adjustBalance(previous, -1); err != nil {
		return [20]byte{}, err
	}
	burned, err := l.counter(l.burnedKey())
	if err != nil {
		return [20]byte{}, err
	}
	if err := l.st.KVPut(l.burnedKey(), burned+1); err != nil {
		return [20]byte{}, err
	}
	return previous, nil
}

// SupportsInterface answers ERC-165 queries for the non-fungible ledgers.
func SupportsInterface(id [4]byte) bool {
	return supportedInterfaceID[id]
}
