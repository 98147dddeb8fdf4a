package collectibles

import (
	"errors"
	"fmt"

	"tdcchain/core/events"
	"tdcchain/native/access"
	nativecommon "tdcchain/native/common"
	"tdcchain/native/metadata"
	"tdcchain/native/nft"
)

var (
	errNilState  = errors.New("collectibles engine: state not configured")
	ErrNotOwner  = fmt.Errorf("collectibles: %w", nativecommon.ErrNotOwner)
	ErrNotMinted = fmt.Errorf("collectibles: token %w", nativecommon.ErrNotFound)
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Engine is the unrestricted non-fungible ledger: minter-gated mint and
// owner-driven transfers without any lifecycle limit.
type Engine struct {
	address [20]byte
	state   engineState
	emitter events.Emitter
	roles   *access.Registry
	tokens  *nft.Ledger
	meta    *metadata.Resolver
}

// NewEngine creates the collectibles engine for the ledger at address. The
// engine is unusable until SetState binds it to a transaction.
func NewEngine(address [20]byte) *Engine {
	return &Engine{address: address, emitter: events.NoopEmitter{}}
}

// SetState binds the engine and its role, token and metadata stores to st.
func (e *Engine) SetState(st engineState) {
	e.state = st
	if st == nil {
		e.roles, e.tokens, e.meta = nil, nil, nil
		return
	}
	e.roles = access.NewRegistry(st, e.address)
	e.roles.SetEmitter(e.emitter)
	e.tokens = nft.NewLedger(st, e.address)
	e.meta = metadata.NewResolver(st, e.address, e.roles, access.DefaultAdminRole)
	e.meta.SetEmitter(e.emitter)
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	if e.roles != nil {
		e.roles.SetEmitter(emitter)
	}
	if e.meta != nil {
		e.meta.SetEmitter(emitter)
	}
}

// Address returns the ledger address.
func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// Access exposes the ledger's role registry.
func (e *Engine) Access() (*access.Registry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.roles, nil
}

// Metadata exposes the ledger's metadata resolver.
func (e *Engine) Metadata() (*metadata.Resolver, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.meta, nil
}

// Mint issues the next collectible to to. The caller must hold the minter role.
func (e *Engine) Mint(caller, to [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := e.roles.Require(access.MinterRole, caller); err != nil {
		return 0, err
	}
	id, err := e.tokens.Mint(to)
	if err != nil {
		return 0, err
	}
	e.emitter.Emit(events.TokenTransfer{Ledger: e.address, To: to, TokenID: id})
	return id, nil
}

// Transfer moves id from from to to. The caller must be from and from must
// own the token. Collectibles may change hands any number of times.
func (e *Engine) Transfer(caller, from, to [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	minted, err := e.tokens.Exists(id)
	if err != nil {
		return err
	}
	if !minted {
		return fmt.Errorf("%w: %d", ErrNotMinted, id)
	}
	if caller != from {
		return ErrNotOwner
	}
	if err := e.tokens.Move(from, to, id); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransfer{Ledger: e.address, From: from, To: to, TokenID: id})
	return nil
}

// OwnerOf returns the owner of id.
func (e *Engine) OwnerOf(id uint64) ([20]byte, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, err
	}
	return e.tokens.OwnerOf(id)
}

// BalanceOf returns how many collectibles owner holds.
func (e *Engine) BalanceOf(owner [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.tokens.BalanceOf(owner)
}

// TotalSupply returns the number of collectibles minted.
func (e *Engine) TotalSupply() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.tokens.TotalSupply()
}

// TokenURI resolves the metadata URI of a minted collectible.
func (e *Engine) TokenURI(id uint64) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	minted, err := e.tokens.Exists(id)
	if err != nil {
		return "", err
	}
	return e.meta.TokenURI(id, minted)
}

// SupportsInterface answers ERC-165 interface queries.
func (e *Engine) SupportsInterface(id [4]byte) bool {
	return nft.SupportsInterface(id)
}
