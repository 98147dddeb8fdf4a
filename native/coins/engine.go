package coins

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"tdcchain/core/events"
	"tdcchain/native/access"
	nativecommon "tdcchain/native/common"
)

const (
	DefaultName     = "TDC Coins"
	DefaultSymbol   = "TDC"
	DefaultDecimals = 0
)

var (
	errNilState      = errors.New("coins engine: state not configured")
	ErrInvalidAmount = fmt.Errorf("coins: %w", nativecommon.ErrInvalidAmount)
	ErrZeroRecipient = fmt.Errorf("coins: %w: zero address", nativecommon.ErrInvalidRecipient)
	ErrOverflow      = fmt.Errorf("coins: %w: balance overflow", nativecommon.ErrInvalidAmount)
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Info describes the fungible token.
type Info struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Engine is the fungible reward ledger. Balances only grow: coins are
// minted by holders of the minter role (in practice a badge ledger paying
// out redemptions) and there is no burn or transfer.
type Engine struct {
	address [20]byte
	state   engineState
	emitter events.Emitter
	roles   *access.Registry
	info    Info
}

// NewEngine creates the coin engine for the ledger at address.
func NewEngine(address [20]byte) *Engine {
	return &Engine{
		address: address,
		emitter: events.NoopEmitter{},
		info:    Info{Name: DefaultName, Symbol: DefaultSymbol, Decimals: DefaultDecimals},
	}
}

// SetState binds the engine to st.
func (e *Engine) SetState(st engineState) {
	e.state = st
	if st == nil {
		e.roles = nil
		return
	}
	e.roles = access.NewRegistry(st, e.address)
	e.roles.SetEmitter(e.emitter)
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
}

// SetInfo overrides the token description.
func (e *Engine) SetInfo(info Info) { e.info = info }

// Info returns the token description.
func (e *Engine) Info() Info { return e.info }

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

func (e *Engine) balanceKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("coins/%x/balance/%x", e.address, owner))
}

func (e *Engine) supplyKey() []byte {
	return []byte(fmt.Sprintf("coins/%x/supply", e.address))
}

func (e *Engine) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := e.state.KVGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func add256(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrOverflow
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return sum.ToBig(), nil
}

// Mint credits amount coins to to. The caller must hold the minter role on
// this ledger; a badge ledger calling on behalf of a redeemer is checked like
// any other caller.
func (e *Engine) Mint(caller, to [20]byte, amount *big.Int) error {
	return e.mint(caller, to, amount, events.SupplyReasonMint)
}

// MintReward is Mint tagged as a redemption payout in the supply event.
func (e *Engine) MintReward(caller, to [20]byte, amount *big.Int) error {
	return e.mint(caller, to, amount, events.SupplyReasonRedemption)
}

func (e *Engine) mint(caller, to [20]byte, amount *big.Int, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.roles.Require(access.MinterRole, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to == ([20]byte{}) {
		return ErrZeroRecipient
	}
	balance, err := e.loadAmount(e.balanceKey(to))
	if err != nil {
		return err
	}
	supply, err := e.loadAmount(e.supplyKey())
	if err != nil {
		return err
	}
	newBalance, err := add256(balance, amount)
	if err != nil {
		return err
	}
	newSupply, err := add256(supply, amount)
	if err != nil {
		return err
	}
	if err := e.state.KVPut(e.balanceKey(to), newBalance); err != nil {
		return err
	}
	if err := e.state.KVPut(e.supplyKey(), newSupply); err != nil {
		return err
	}
	minted := new(big.Int).Set(amount)
	e.emitter.Emit(events.CoinTransfer{Ledger: e.address, To: to, Amount: minted})
	e.emitter.Emit(events.CoinSupply{Ledger: e.address, Total: newSupply, Delta: minted, Reason: reason})
	return nil
}

// BalanceOf returns the coin balance of owner.
func (e *Engine) BalanceOf(owner [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadAmount(e.balanceKey(owner))
}

// TotalSupply returns the sum of every mint.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadAmount(e.supplyKey())
}
