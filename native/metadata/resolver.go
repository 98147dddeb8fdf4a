package metadata

import (
	"fmt"
	"strconv"

	"tdcchain/core/events"
	nativecommon "tdcchain/native/common"
)

var ErrTokenNotFound = fmt.Errorf("metadata: token %w", nativecommon.ErrNotFound)

type resolverState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Authorizer is the capability check guarding metadata updates.
type Authorizer interface {
	Require(role [32]byte, account [20]byte) error
}

// Resolver holds the base URI and contract URI of one ledger. Token URIs are
// composed on read, so a base URI update repoints every existing token.
type Resolver struct {
	st        resolverState
	ledger    [20]byte
	auth      Authorizer
	adminRole [32]byte
	emitter   events.Emitter
}

// NewResolver returns the metadata resolver of ledger. Updates require
// adminRole as checked by auth.
func NewResolver(st resolverState, ledger [20]byte, auth Authorizer, adminRole [32]byte) *Resolver {
	return &Resolver{st: st, ledger: ledger, auth: auth, adminRole: adminRole, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (r *Resolver) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func baseURIKey(ledger [20]byte) []byte {
	return []byte(fmt.Sprintf("metadata/%x/base-uri", ledger))
}

func contractURIKey(ledger [20]byte) []byte {
	return []byte(fmt.Sprintf("metadata/%x/contract-uri", ledger))
}

func (r *Resolver) load(key []byte) (string, error) {
	var value string
	if _, err := r.st.KVGet(key, &value); err != nil {
		return "", err
	}
	return value, nil
}

// SetBaseURI overwrites the base URI.
func (r *Resolver) SetBaseURI(caller [20]byte, prefix string) error {
	if err := r.auth.Require(r.adminRole, caller); err != nil {
		return err
	}
	if err := r.st.KVPut(baseURIKey(r.ledger), prefix); err != nil {
		return err
	}
	r.emitter.Emit(events.BaseURIUpdated{Ledger: r.ledger, URI: prefix})
	return nil
}

// SetContractURI overwrites the contract-level metadata URI.
func (r *Resolver) SetContractURI(caller [20]byte, uri string) error {
	if err := r.auth.Require(r.adminRole, caller); err != nil {
		return err
	}
	if err := r.st.KVPut(contractURIKey(r.ledger), uri); err != nil {
		return err
	}
	r.emitter.Emit(events.ContractURIUpdated{Ledger: r.ledger, URI: uri})
	return nil
}

// BaseURI returns the configured base URI or "".
func (r *Resolver) BaseURI() (string, error) {
	return r.load(baseURIKey(r.ledger))
}

// ContractURI returns the configured contract URI or "".
func (r *Resolver) ContractURI() (string, error) {
	return r.load(contractURIKey(r.ledger))
}

// TokenURI composes "<base><id>.json". Tokens that were never minted fail
// with ErrTokenNotFound; without a base URI the result is "".
func (r *Resolver) TokenURI(id uint64, minted bool) (string, error) {
	if !minted {
		return "", fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	base, err := r.BaseURI()
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", nil
	}
	return base + strconv.FormatUint(id, 10) + ".json", nil
}
