package badges_test

import (
	"errors"
	"math/big"
	"testing"

	"tdcchain/core/events"
	"tdcchain/core/state"
	"tdcchain/native/access"
	"tdcchain/native/badges"
	"tdcchain/native/coins"
	nativecommon "tdcchain/native/common"
	"tdcchain/native/nft"
	"tdcchain/storage"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func (c *capturingEmitter) transfers() []events.TokenTransfer {
	var out []events.TokenTransfer
	for _, e := range c.events {
		if transfer, ok := e.(events.TokenTransfer); ok {
			out = append(out, transfer)
		}
	}
	return out
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

var (
	owner        = addr(1)
	address1     = addr(2)
	address2     = addr(3)
	address3     = addr(4)
	badgeLedger  = addr(0xB0)
	collectibles = addr(0xC0)
	coinLedger   = addr(0xC1)
)

type coinDirectory map[[20]byte]badges.CoinMinter

func (d coinDirectory) CoinLedger(address [20]byte) (badges.CoinMinter, error) {
	minter, ok := d[address]
	if !ok {
		return nil, errors.New("unknown coin ledger")
	}
	return minter, nil
}

type fixture struct {
	badges  *badges.Engine
	coins   *coins.Engine
	emitter *capturingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	emitter := &capturingEmitter{}

	badgeEngine := badges.NewEngine(badgeLedger)
	badgeEngine.SetEmitter(emitter)
	badgeEngine.SetState(manager)
	coinEngine := coins.NewEngine(coinLedger)
	coinEngine.SetEmitter(emitter)
	coinEngine.SetState(manager)
	badgeEngine.SetCoinDirectory(coinDirectory{coinLedger: coinEngine})

	for _, roles := range []func() (*access.Registry, error){badgeEngine.Access, coinEngine.Access} {
		registry, err := roles()
		if err != nil {
			t.Fatalf("access: %v", err)
		}
		if err := registry.Bootstrap([][20]byte{owner}); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
	}
	return &fixture{badges: badgeEngine, coins: coinEngine, emitter: emitter}
}

func (f *fixture) grantMinter(t *testing.T, engine interface {
	Access() (*access.Registry, error)
}, account [20]byte) {
	t.Helper()
	registry, err := engine.Access()
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if err := registry.Grant(owner, access.MinterRole, account); err != nil {
		t.Fatalf("grant minter: %v", err)
	}
}

func (f *fixture) mint(t *testing.T, to [20]byte) uint64 {
	t.Helper()
	id, err := f.badges.Mint(owner, to)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return id
}

func expectReason(t *testing.T, err error, reason string) {
	t.Helper()
	if !errors.Is(err, nativecommon.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure %q, got %v", reason, err)
	}
	if got, _ := nativecommon.Reason(err); got != reason {
		t.Fatalf("expected reason %q, got %q", reason, got)
	}
}

func TestInitializeBadgeLedger(t *testing.T) {
	f := newFixture(t)
	supply, err := f.badges.TotalSupply()
	if err != nil || supply != 0 {
		t.Fatalf("expected empty ledger, got %d err=%v", supply, err)
	}
	if !f.badges.SupportsInterface(nft.InterfaceERC721) {
		t.Fatalf("expected ERC721 support")
	}
}

func TestGiveAwayBadges(t *testing.T) {
	f := newFixture(t)
	if _, err := f.badges.Mint(owner, address1); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized mint, got %v", err)
	}
	f.grantMinter(t, f.badges, owner)
	if _, err := f.badges.MintBadges(owner, address1, 0); !errors.Is(err, nativecommon.ErrInvalidCount) {
		t.Fatalf("expected invalid count for zero, got %v", err)
	}
	if _, err := f.badges.MintBadges(owner, address1, 2); !errors.Is(err, nativecommon.ErrInvalidCount) {
		t.Fatalf("expected invalid count for bulk, got %v", err)
	}

	if id := f.mint(t, address1); id != 0 {
		t.Fatalf("expected id 0, got %d", id)
	}
	if id := f.mint(t, address2); id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	transfers := f.emitter.transfers()
	if len(transfers) != 2 || transfers[1].From != ([20]byte{}) || transfers[1].To != address2 || transfers[1].TokenID != 1 {
		t.Fatalf("unexpected mint events %+v", transfers)
	}

	if _, err := f.badges.TokenURI(2); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected not found for unminted badge, got %v", err)
	}
	if uri, err := f.badges.TokenURI(1); err != nil || uri != "" {
		t.Fatalf("expected empty uri, got %q err=%v", uri, err)
	}
	meta, _ := f.badges.Metadata()
	if err := meta.SetBaseURI(owner, "foo/"); err != nil {
		t.Fatalf("set base uri: %v", err)
	}
	if uri, _ := f.badges.TokenURI(1); uri != "foo/1.json" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if uri, _ := meta.ContractURI(); uri != "" {
		t.Fatalf("expected empty contract uri, got %q", uri)
	}
	if err := meta.SetContractURI(owner, "foobar.json"); err != nil {
		t.Fatalf("set contract uri: %v", err)
	}
	if uri, _ := meta.ContractURI(); uri != "foobar.json" {
		t.Fatalf("unexpected contract uri %q", uri)
	}
}

func TestTransferBadgesOnce(t *testing.T) {
	f := newFixture(t)
	f.grantMinter(t, f.badges, owner)
	id := f.mint(t, address1)

	err := f.badges.Transfer(address1, address1, address2, id)
	expectReason(t, err, "collectibles ref unset")

	if err := f.badges.SetCollectiblesRef(address1, collectibles); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected only admins to link, got %v", err)
	}
	if err := f.badges.SetCollectiblesRef(owner, [20]byte{}); !errors.Is(err, nativecommon.ErrInvalidRecipient) {
		t.Fatalf("expected zero ref rejected, got %v", err)
	}
	if err := f.badges.SetCollectiblesRef(owner, collectibles); err != nil {
		t.Fatalf("link collectibles: %v", err)
	}
	if err := f.badges.Transfer(address2, address1, address2, id); !errors.Is(err, nativecommon.ErrNotOwner) {
		t.Fatalf("expected not owner for third-party caller, got %v", err)
	}
	if err := f.badges.Transfer(address1, address1, address2, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	badge, err := f.badges.Badge(id)
	if err != nil {
		t.Fatalf("badge: %v", err)
	}
	if badge.Owner != address2 || !badge.State.Transferred() || badge.State.Redeemed() {
		t.Fatalf("unexpected badge %+v", badge)
	}

	expectReason(t, f.badges.Transfer(address2, address2, address3, id), "already transferred")
	expectReason(t, f.badges.Transfer(address3, address3, address1, id), "already transferred")

	if err := f.badges.Transfer(address1, address1, address2, 7); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected not found for unminted badge, got %v", err)
	}
}

func TestTransferToCurrentHolderIsRefused(t *testing.T) {
	f := newFixture(t)
	f.grantMinter(t, f.badges, owner)
	f.grantMinter(t, f.coins, badgeLedger)
	id := f.mint(t, address1)
	if err := f.badges.SetCollectiblesRef(owner, collectibles); err != nil {
		t.Fatalf("link collectibles: %v", err)
	}
	if err := f.badges.SetCoinsRef(owner, coinLedger); err != nil {
		t.Fatalf("link coins: %v", err)
	}

	if err := f.badges.Transfer(address1, address1, address1, id); !errors.Is(err, nativecommon.ErrInvalidRecipient) {
		t.Fatalf("expected self transfer rejected, got %v", err)
	}
	badge, err := f.badges.Badge(id)
	if err != nil {
		t.Fatalf("badge: %v", err)
	}
	if badge.State != badges.StateMinted || badge.Owner != address1 {
		t.Fatalf("self transfer must not consume the transfer, got %+v", badge)
	}
	expectReason(t, f.badges.Redeem(address1, address1, id), "not transferred")
	if balance, _ := f.coins.BalanceOf(address1); balance.Sign() != 0 {
		t.Fatalf("expected no coins, got %v", balance)
	}

	if err := f.badges.Transfer(address1, address1, address2, id); err != nil {
		t.Fatalf("transfer after refused self transfer: %v", err)
	}
}

func TestRedeemForCoins(t *testing.T) {
	f := newFixture(t)
	f.grantMinter(t, f.badges, owner)
	id := f.mint(t, address1)
	if err := f.badges.SetCollectiblesRef(owner, collectibles); err != nil {
		t.Fatalf("link collectibles: %v", err)
	}

	expectReason(t, f.badges.Redeem(address2, address2, id), "not transferred")

	if err := f.badges.Transfer(address1, address1, address2, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	expectReason(t, f.badges.Redeem(address2, address2, id), "coins ref unset")

	if err := f.badges.SetCoinsRef(owner, coinLedger); err != nil {
		t.Fatalf("link coins: %v", err)
	}
	if err := f.badges.Redeem(address2, address2, id); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected coin ledger minter gate, got %v", err)
	}
	if badge, _ := f.badges.Badge(id); badge.State != badges.StateTransferred || badge.Owner != address2 {
		t.Fatalf("failed redemption must leave badge untouched, got %+v", badge)
	}

	f.grantMinter(t, f.coins, badgeLedger)
	if err := f.badges.Redeem(address1, address2, id); !errors.Is(err, nativecommon.ErrNotOwner) {
		t.Fatalf("expected caller to be the redeemer, got %v", err)
	}
	if err := f.badges.Redeem(address2, address2, id); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	holder, err := f.badges.OwnerOf(id)
	if err != nil || holder != ([20]byte{}) {
		t.Fatalf("expected burned owner, got %x err=%v", holder, err)
	}
	balance, err := f.coins.BalanceOf(address2)
	if err != nil || balance.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected one coin, got %v err=%v", balance, err)
	}
	transfers := f.emitter.transfers()
	burn := transfers[len(transfers)-1]
	if burn.From != address2 || burn.To != ([20]byte{}) || burn.TokenID != id {
		t.Fatalf("unexpected burn event %+v", burn)
	}
	if supply, _ := f.badges.TotalSupply(); supply != 0 {
		t.Fatalf("expected redeemed badge to leave supply, got %d", supply)
	}
	if uri, err := f.badges.TokenURI(id); err != nil || uri != "" {
		t.Fatalf("redeemed badge keeps its uri, got %q err=%v", uri, err)
	}

	if err := f.badges.Redeem(address2, address2, id); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected second redemption to fail not found, got %v", err)
	}
}

type failingMinter struct{ calls int }

func (m *failingMinter) MintReward(caller, to [20]byte, amount *big.Int) error {
	m.calls++
	return errors.New("coin ledger offline")
}

func TestRedeemSurfacesMinterFailure(t *testing.T) {
	f := newFixture(t)
	minter := &failingMinter{}
	f.badges.SetCoinDirectory(coinDirectory{coinLedger: minter})
	f.grantMinter(t, f.badges, owner)
	id := f.mint(t, address1)
	if err := f.badges.SetCollectiblesRef(owner, collectibles); err != nil {
		t.Fatalf("link collectibles: %v", err)
	}
	if err := f.badges.SetCoinsRef(owner, coinLedger); err != nil {
		t.Fatalf("link coins: %v", err)
	}
	if err := f.badges.Transfer(address1, address1, address2, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := f.badges.Redeem(address2, address2, id); err == nil {
		t.Fatalf("expected minter failure to surface")
	}
	if minter.calls != 1 {
		t.Fatalf("expected one mint attempt, got %d", minter.calls)
	}
	if holder, _ := f.badges.OwnerOf(id); holder != address2 {
		t.Fatalf("badge must not burn when payout fails")
	}
}

func TestStateString(t *testing.T) {
	if badges.StateRedeemed.String() != "redeemed" || !badges.StateRedeemed.Transferred() {
		t.Fatalf("unexpected redeemed state view")
	}
	if badges.StateMinted.Transferred() {
		t.Fatalf("minted badge must not read as transferred")
	}
}
