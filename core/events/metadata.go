package events

import "tdcchain/core/types"

const (
	TypeBaseURIUpdated     = "metadata.baseURIUpdated"
	TypeContractURIUpdated = "metadata.contractURIUpdated"
)

type BaseURIUpdated struct {
	Ledger [20]byte
	URI    string
}

func (BaseURIUpdated) EventType() string { return TypeBaseURIUpdated }

func (e BaseURIUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBaseURIUpdated,
		Attributes: map[string]string{
			"ledger": formatPrincipal(e.Ledger),
			"uri":    e.URI,
		},
	}
}

type ContractURIUpdated struct {
	Ledger [20]byte
	URI    string
}

func (ContractURIUpdated) EventType() string { return TypeContractURIUpdated }

func (e ContractURIUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeContractURIUpdated,
		Attributes: map[string]string{
			"ledger": formatPrincipal(e.Ledger),
			"uri":    e.URI,
		},
	}
}
