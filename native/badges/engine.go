package badges

import (
	"fmt"
	"math/big"

	"tdcchain/core/events"
	"tdcchain/native/access"
	"tdcchain/native/metadata"
	"tdcchain/native/nft"
)

const (
	// LinkCollectibles names the collectibles reference in link events.
	LinkCollectibles = "collectibles"
	// LinkCoins names the coins reference in link events.
	LinkCoins = "coins"

	// RedemptionReward is the number of coins paid per redeemed badge.
	RedemptionReward = 1
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// CoinMinter is the only coin ledger entry point a badge ledger may call.
type CoinMinter interface {
	MintReward(caller, to [20]byte, amount *big.Int) error
}

// CoinDirectory resolves a coin ledger reference to its minter within the
// current transaction.
type CoinDirectory interface {
	CoinLedger(address [20]byte) (CoinMinter, error)
}

// Engine is the badge ledger. It layers the one-transfer-then-redeem
// lifecycle over the shared non-fungible store.
type Engine struct {
	address   [20]byte
	state     engineState
	emitter   events.Emitter
	directory CoinDirectory
	roles     *access.Registry
	tokens    *nft.Ledger
	meta      *metadata.Resolver
}

// NewEngine creates the badge engine for the ledger at address.
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

// SetCoinDirectory configures how coin references are resolved at redemption.
func (e *Engine) SetCoinDirectory(directory CoinDirectory) {
	e.directory = directory
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

func (e *Engine) stateKey(id uint64) []byte {
	return []byte(fmt.Sprintf("badges/%x/state/%d", e.address, id))
}

func (e *Engine) refKey(kind string) []byte {
	return []byte(fmt.Sprintf("badges/%x/ref/%s", e.address, kind))
}

func (e *Engine) loadState(id uint64) (State, error) {
	var raw uint8
	if _, err := e.state.KVGet(e.stateKey(id), &raw); err != nil {
		return StateUnminted, err
	}
	return State(raw), nil
}

func (e *Engine) storeState(id uint64, s State) error {
	return e.state.KVPut(e.stateKey(id), uint8(s))
}

func (e *Engine) loadRef(kind string) ([20]byte, bool, error) {
	var ref [20]byte
	ok, err := e.state.KVGet(e.refKey(kind), &ref)
	if err != nil {
		return [20]byte{}, false, err
	}
	return ref, ok && ref != ([20]byte{}), nil
}

func (e *Engine) setRef(caller [20]byte, kind string, target [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.roles.Require(access.DefaultAdminRole, caller); err != nil {
		return err
	}
	if target == ([20]byte{}) {
		return ErrZeroRef
	}
	if err := e.state.KVPut(e.refKey(kind), target); err != nil {
		return err
	}
	e.emitter.Emit(events.LedgerLinked{Ledger: e.address, Kind: kind, Target: target})
	return nil
}

// SetCollectiblesRef wires the badge ledger to a collectibles ledger. Admin only.
func (e *Engine) SetCollectiblesRef(caller, target [20]byte) error {
	return e.setRef(caller, LinkCollectibles, target)
}

// SetCoinsRef wires the badge ledger to the coin ledger that pays redemptions.
// Admin only.
func (e *Engine) SetCoinsRef(caller, target [20]byte) error {
	return e.setRef(caller, LinkCoins, target)
}

// CollectiblesRef returns the configured collectibles ledger, if any.
func (e *Engine) CollectiblesRef() ([20]byte, bool, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, false, err
	}
	return e.loadRef(LinkCollectibles)
}

// CoinsRef returns the configured coin ledger, if any.
func (e *Engine) CoinsRef() ([20]byte, bool, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, false, err
	}
	return e.loadRef(LinkCoins)
}

// Mint issues a single badge to to.
func (e *Engine) Mint(caller, to [20]byte) (uint64, error) {
	return e.MintBadges(caller, to, 1)
}

// MintBadges issues count badges to to. Only single-unit requests are
// accepted; any other count fails without touching state.
func (e *Engine) MintBadges(caller, to [20]byte, count uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := e.roles.Require(access.MinterRole, caller); err != nil {
		return 0, err
	}
	if count != 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if to == ([20]byte{}) {
		return 0, ErrZeroRecipient
	}
	id, err := e.tokens.Mint(to)
	if err != nil {
		return 0, err
	}
	if err := e.storeState(id, StateMinted); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.TokenTransfer{Ledger: e.address, To: to, TokenID: id})
	return id, nil
}

// Transfer performs the single permitted transfer of id. Checks run in a
// fixed order so the first unmet dependency is the one reported.
func (e *Engine) Transfer(caller, from, to [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	current, err := e.loadState(id)
	if err != nil {
		return err
	}
	if current == StateUnminted {
		return fmt.Errorf("%w: %d", ErrNotMinted, id)
	}
	if _, linked, err := e.loadRef(LinkCollectibles); err != nil {
		return err
	} else if !linked {
		return ErrCollectiblesUnset
	}
	if current.Transferred() {
		return ErrAlreadyTransferred
	}
	owner, err := e.tokens.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller != from || from != owner {
		return ErrNotOwner
	}
	if to == ([20]byte{}) {
		return ErrZeroRecipient
	}
	if to == owner {
		return ErrSelfTransfer
	}
	if err := e.tokens.Move(from, to, id); err != nil {
		return err
	}
	if err := e.storeState(id, StateTransferred); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransfer{Ledger: e.address, From: from, To: to, TokenID: id})
	return nil
}

// Redeem burns a transferred badge held by by and pays by one coin from the
// linked coin ledger. The coin mint runs inside the caller's transaction; if
// it fails the badge is left untouched.
func (e *Engine) Redeem(caller, by [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	current, err := e.loadState(id)
	if err != nil {
		return err
	}
	if current == StateUnminted || current == StateRedeemed {
		return fmt.Errorf("%w: %d", ErrNotMinted, id)
	}
	if !current.Transferred() {
		return ErrNotTransferred
	}
	owner, err := e.tokens.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller != by || by != owner {
		return ErrNotOwner
	}
	coinsRef, linked, err := e.loadRef(LinkCoins)
	if err != nil {
		return err
	}
	if !linked {
		return ErrCoinsUnset
	}
	if e.directory == nil {
		return ErrNoDirectory
	}
	minter, err := e.directory.CoinLedger(coinsRef)
	if err != nil {
		return err
	}
	if err := minter.MintReward(e.address, by, big.NewInt(RedemptionReward)); err != nil {
		return err
	}
	if _, err := e.tokens.Burn(id); err != nil {
		return err
	}
	if err := e.storeState(id, StateRedeemed); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransfer{Ledger: e.address, From: by, TokenID: id})
	e.emitter.Emit(events.BadgeRedeemed{
		Ledger:      e.address,
		TokenID:     id,
		Redeemer:    by,
		CoinsLedger: coinsRef,
		Reward:      RedemptionReward,
	})
	return nil
}

// Badge returns the owner and lifecycle state of id.
func (e *Engine) Badge(id uint64) (*Badge, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	current, err := e.loadState(id)
	if err != nil {
		return nil, err
	}
	if current == StateUnminted {
		return nil, fmt.Errorf("%w: %d", ErrNotMinted, id)
	}
	owner, err := e.tokens.OwnerOf(id)
	if err != nil {
		return nil, err
	}
	return &Badge{ID: id, Owner: owner, State: current}, nil
}

// OwnerOf returns the holder of id, or the zero address once redeemed.
func (e *Engine) OwnerOf(id uint64) ([20]byte, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, err
	}
	return e.tokens.OwnerOf(id)
}

// BalanceOf returns how many live badges owner holds.
func (e *Engine) BalanceOf(owner [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.tokens.BalanceOf(owner)
}

// TotalSupply returns the number of badges minted and not yet redeemed.
func (e *Engine) TotalSupply() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.tokens.TotalSupply()
}

// TokenURI resolves the metadata URI of a minted badge, redeemed or not.
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
