package genesis

import (
	"context"
	"fmt"

	"tdcchain/core"
	"tdcchain/core/state"
)

type appliedMarker struct {
	GenesisTime uint64
}

// Apply deploys and wires everything the genesis file describes in one transaction.
// A database that already carries a genesis marker is left untouched and
// Apply reports false.
func Apply(ctx context.Context, runtime *core.Runtime, spec *GenesisSpec) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("genesis spec must not be nil")
	}
	if runtime == nil {
		return false, fmt.Errorf("runtime must not be nil")
	}
	kinds := make(map[string]core.Kind, len(spec.Ledgers))
	firstAdmin := make(map[string][20]byte, len(spec.Ledgers))
	for _, l := range spec.Ledgers {
		kinds[l.Name] = l.kind
		firstAdmin[l.Name] = l.admins[0]
	}

	applied := false
	err := runtime.Execute(ctx, "genesis", func(s *core.Session) error {
		manager := s.State()
		var marker appliedMarker
		done, err := manager.KVGet(state.GenesisMarkerKey(), &marker)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		for _, l := range spec.Ledgers {
			if _, _, err := s.Deploy(l.Name, l.kind, l.admins); err != nil {
				return fmt.Errorf("deploy %s: %w", l.Name, err)
			}
			if l.kind == core.KindCoins {
				continue
			}
			meta, err := s.Metadata(l.Name)
			if err != nil {
				return err
			}
			if l.BaseURI != "" {
				if err := meta.SetBaseURI(l.admins[0], l.BaseURI); err != nil {
					return fmt.Errorf("%s base uri: %w", l.Name, err)
				}
			}
			if l.ContractURI != "" {
				if err := meta.SetContractURI(l.admins[0], l.ContractURI); err != nil {
					return fmt.Errorf("%s contract uri: %w", l.Name, err)
				}
			}
		}

		for _, r := range spec.Roles {
			roles, err := s.Access(r.Ledger)
			if err != nil {
				return err
			}
			for _, account := range r.Accounts {
				addr, err := resolveAccount(account, kinds)
				if err != nil {
					return err
				}
				if err := roles.Grant(firstAdmin[r.Ledger], r.role, addr); err != nil {
					return fmt.Errorf("grant %s on %s: %w", r.Role, r.Ledger, err)
				}
			}
		}

		for _, link := range spec.Links {
			badges, err := s.Badges(link.Badges)
			if err != nil {
				return err
			}
			admin := firstAdmin[link.Badges]
			if link.Collectibles != "" {
				if err := badges.SetCollectiblesRef(admin, core.LedgerAddress(link.Collectibles)); err != nil {
					return fmt.Errorf("link %s collectibles: %w", link.Badges, err)
				}
			}
			if link.Coins != "" {
				if err := badges.SetCoinsRef(admin, core.LedgerAddress(link.Coins)); err != nil {
					return fmt.Errorf("link %s coins: %w", link.Badges, err)
				}
			}
		}

		marker.GenesisTime = uint64(spec.GenesisTimestamp().Unix())
		if err := manager.KVPut(state.GenesisMarkerKey(), &marker); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
