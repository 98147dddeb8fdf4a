package core

import (
	"context"
	"fmt"
	"strings"

	"tdcchain/core/events"
	"tdcchain/core/state"
	"tdcchain/crypto"
	"tdcchain/native/access"
	"tdcchain/native/badges"
	"tdcchain/native/coins"
	"tdcchain/native/collectibles"
	"tdcchain/native/metadata"
)

// Session is the view of ledger state inside one transaction. Every engine it
// hands out writes to the same journal and emits into the same buffer, so a
// call that spans ledgers commits or aborts as a unit.
type Session struct {
	ctx     context.Context
	manager *state.Manager
	emitter events.Emitter

	badges       map[[20]byte]*badges.Engine
	collectibles map[[20]byte]*collectibles.Engine
	coins        map[[20]byte]*coins.Engine
}

func newSession(ctx context.Context, manager *state.Manager, emitter events.Emitter) *Session {
	return &Session{
		ctx:          ctx,
		manager:      manager,
		emitter:      emitter,
		badges:       make(map[[20]byte]*badges.Engine),
		collectibles: make(map[[20]byte]*collectibles.Engine),
		coins:        make(map[[20]byte]*coins.Engine),
	}
}

// Context returns the context the transaction was started with.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) loadDeployment(addr [20]byte) (*Deployment, bool, error) {
	var stored storedDeployment
	ok, err := s.manager.KVGet(state.DeploymentKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Deployment{Name: stored.Name, Kind: Kind(stored.Kind), Address: stored.Address}, true, nil
}

// Deployments lists every deployed ledger in deployment order.
func (s *Session) Deployments() ([]Deployment, error) {
	var addrs [][]byte
	if err := s.manager.KVGetList(state.DeploymentListKey(), &addrs); err != nil {
		return nil, err
	}
	out := make([]Deployment, 0, len(addrs))
	for _, raw := range addrs {
		var addr [20]byte
		copy(addr[:], raw)
		d, ok, err := s.loadDeployment(addr)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

// Resolve finds a deployment by ledger name, bech32 principal or 0x address.
func (s *Session) Resolve(ref string) (*Deployment, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrUnknownLedger)
	}
	if addr, err := crypto.ParseAddress(trimmed); err == nil {
		return s.ResolveAddress(addr)
	}
	var addr [20]byte
	ok, err := s.manager.KVGet(state.DeploymentNameKey(NormalizeLedgerName(trimmed)), &addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, trimmed)
	}
	return s.ResolveAddress(addr)
}

// ResolveAddress finds the deployment at addr.
func (s *Session) ResolveAddress(addr [20]byte) (*Deployment, error) {
	d, ok, err := s.loadDeployment(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, crypto.FormatAddress(addr))
	}
	return d, nil
}

// Deploy registers a ledger called name served by kind and bootstraps its
// admins. Deploying an existing name with the same kind returns the existing
// record unchanged.
func (s *Session) Deploy(name string, kind Kind, admins [][20]byte) (*Deployment, bool, error) {
	name = NormalizeLedgerName(name)
	if err := validateLedgerName(name); err != nil {
		return nil, false, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, false, err
	}
	addr := LedgerAddress(name)
	if existing, ok, err := s.loadDeployment(addr); err != nil {
		return nil, false, err
	} else if ok {
		if existing.Kind != kind {
			return nil, false, fmt.Errorf("%w: %s is %s", ErrDeploymentConflict, name, existing.Kind)
		}
		return existing, false, nil
	}
	record := storedDeployment{Name: name, Kind: string(kind), Address: addr}
	if err := s.manager.KVPut(state.DeploymentKey(addr), &record); err != nil {
		return nil, false, err
	}
	if err := s.manager.KVPut(state.DeploymentNameKey(name), addr); err != nil {
		return nil, false, err
	}
	if err := s.manager.KVAppend(state.DeploymentListKey(), addr[:]); err != nil {
		return nil, false, err
	}
	roles := access.NewRegistry(s.manager, addr)
	roles.SetEmitter(s.emitter)
	if err := roles.Bootstrap(admins); err != nil {
		return nil, false, err
	}
	return &Deployment{Name: name, Kind: kind, Address: addr}, true, nil
}

func (s *Session) resolveKind(ref string, kind Kind) (*Deployment, error) {
	d, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if d.Kind != kind {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrKindMismatch, d.Name, d.Kind, kind)
	}
	return d, nil
}

// Badges returns the badge engine for ref bound to this transaction.
func (s *Session) Badges(ref string) (*badges.Engine, error) {
	d, err := s.resolveKind(ref, KindBadges)
	if err != nil {
		return nil, err
	}
	return s.badgeEngine(d.Address), nil
}

func (s *Session) badgeEngine(addr [20]byte) *badges.Engine {
	if engine, ok := s.badges[addr]; ok {
		return engine
	}
	engine := badges.NewEngine(addr)
	engine.SetEmitter(s.emitter)
	engine.SetState(s.manager)
	engine.SetCoinDirectory(s)
	s.badges[addr] = engine
	return engine
}

// Collectibles returns the collectibles engine for ref.
func (s *Session) Collectibles(ref string) (*collectibles.Engine, error) {
	d, err := s.resolveKind(ref, KindCollectibles)
	if err != nil {
		return nil, err
	}
	if engine, ok := s.collectibles[d.Address]; ok {
		return engine, nil
	}
	engine := collectibles.NewEngine(d.Address)
	engine.SetEmitter(s.emitter)
	engine.SetState(s.manager)
	s.collectibles[d.Address] = engine
	return engine, nil
}

// Coins returns the coin engine for ref.
func (s *Session) Coins(ref string) (*coins.Engine, error) {
	d, err := s.resolveKind(ref, KindCoins)
	if err != nil {
		return nil, err
	}
	return s.coinEngine(d.Address), nil
}

func (s *Session) coinEngine(addr [20]byte) *coins.Engine {
	if engine, ok := s.coins[addr]; ok {
		return engine
	}
	engine := coins.NewEngine(addr)
	engine.SetEmitter(s.emitter)
	engine.SetState(s.manager)
	s.coins[addr] = engine
	return engine
}

// CoinLedger resolves a badge ledger's coin reference. The reference must
// name a deployed coin ledger.
func (s *Session) CoinLedger(addr [20]byte) (badges.CoinMinter, error) {
	d, err := s.ResolveAddress(addr)
	if err != nil {
		return nil, err
	}
	if d.Kind != KindCoins {
		return nil, fmt.Errorf("%w: %s is %s, not %s", ErrKindMismatch, d.Name, d.Kind, KindCoins)
	}
	return s.coinEngine(addr), nil
}

// Access returns the role registry of any deployed ledger.
func (s *Session) Access(ref string) (*access.Registry, error) {
	d, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	roles := access.NewRegistry(s.manager, d.Address)
	roles.SetEmitter(s.emitter)
	return roles, nil
}

// Metadata returns the metadata resolver of a badge or collectibles ledger.
func (s *Session) Metadata(ref string) (*metadata.Resolver, error) {
	d, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case KindBadges:
		return s.badgeEngine(d.Address).Metadata()
	case KindCollectibles:
		engine, err := s.Collectibles(d.Name)
		if err != nil {
			return nil, err
		}
		return engine.Metadata()
	default:
		return nil, fmt.Errorf("%w: %s has no metadata", ErrKindMismatch, d.Name)
	}
}

// State exposes the transaction's journaled state for bookkeeping that does
// not belong to any one ledger.
func (s *Session) State() *state.Manager { return s.manager }
