package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tdcchain/core"
	"tdcchain/crypto"
	"tdcchain/native/access"
)

// GenesisSpec is the bootstrap document: the ledgers to deploy, their initial
// role grants and the badge ledger wiring.
type GenesisSpec struct {
	GenesisTime string       `yaml:"genesisTime"`
	Ledgers     []LedgerSpec `yaml:"ledgers"`
	Roles       []RoleSpec   `yaml:"roles"`
	Links       []LinkSpec   `yaml:"links"`

	genesisTimestamp time.Time
}

type LedgerSpec struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Admins      []string `yaml:"admins"`
	BaseURI     string   `yaml:"baseURI,omitempty"`
	ContractURI string   `yaml:"contractURI,omitempty"`

	kind   core.Kind
	admins [][20]byte
}

// RoleSpec grants role on ledger to each account. Accounts may be principals
// or the names of other ledgers in the document.
type RoleSpec struct {
	Ledger   string   `yaml:"ledger"`
	Role     string   `yaml:"role"`
	Accounts []string `yaml:"accounts"`

	role [32]byte
}

// LinkSpec wires a badge ledger to its collectibles and coin ledgers.
type LinkSpec struct {
	Badges       string `yaml:"badges"`
	Collectibles string `yaml:"collectibles,omitempty"`
	Coins        string `yaml:"coins,omitempty"`
}

// LoadGenesisSpec reads and validates the YAML document at path. Unknown
// fields are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a YAML document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if len(s.Ledgers) == 0 {
		return fmt.Errorf("at least one ledger required")
	}
	kinds := make(map[string]core.Kind, len(s.Ledgers))
	for i := range s.Ledgers {
		l := &s.Ledgers[i]
		l.Name = core.NormalizeLedgerName(l.Name)
		if l.Name == "" {
			return fmt.Errorf("ledger[%d]: name must be provided", i)
		}
		if _, exists := kinds[l.Name]; exists {
			return fmt.Errorf("ledger[%d]: duplicate name %q", i, l.Name)
		}
		kind, err := core.ParseKind(l.Kind)
		if err != nil {
			return fmt.Errorf("ledger[%d]: %w", i, err)
		}
		l.kind = kind
		kinds[l.Name] = kind
		if kind == core.KindCoins && (l.BaseURI != "" || l.ContractURI != "") {
			return fmt.Errorf("ledger[%d]: coin ledgers carry no metadata", i)
		}
		if len(l.Admins) == 0 {
			return fmt.Errorf("ledger[%d]: at least one admin required", i)
		}
		l.admins = l.admins[:0]
		for j, admin := range l.Admins {
			addr, err := crypto.ParseAddress(admin)
			if err != nil {
				return fmt.Errorf("ledger[%d].admins[%d]: %w", i, j, err)
			}
			l.admins = append(l.admins, addr)
		}
	}

	for i := range s.Roles {
		r := &s.Roles[i]
		r.Ledger = core.NormalizeLedgerName(r.Ledger)
		if _, ok := kinds[r.Ledger]; !ok {
			return fmt.Errorf("roles[%d]: unknown ledger %q", i, r.Ledger)
		}
		role, err := access.ParseRole(r.Role)
		if err != nil {
			return fmt.Errorf("roles[%d]: %w", i, err)
		}
		r.role = role
		for j, account := range r.Accounts {
			if _, err := resolveAccount(account, kinds); err != nil {
				return fmt.Errorf("roles[%d].accounts[%d]: %w", i, j, err)
			}
		}
	}

	for i := range s.Links {
		l := &s.Links[i]
		if err := expectKind(kinds, &l.Badges, core.KindBadges, true); err != nil {
			return fmt.Errorf("links[%d].badges: %w", i, err)
		}
		if err := expectKind(kinds, &l.Collectibles, core.KindCollectibles, false); err != nil {
			return fmt.Errorf("links[%d].collectibles: %w", i, err)
		}
		if err := expectKind(kinds, &l.Coins, core.KindCoins, false); err != nil {
			return fmt.Errorf("links[%d].coins: %w", i, err)
		}
	}
	return nil
}

func expectKind(kinds map[string]core.Kind, name *string, want core.Kind, required bool) error {
	*name = core.NormalizeLedgerName(*name)
	if *name == "" {
		if required {
			return fmt.Errorf("ledger name required")
		}
		return nil
	}
	kind, ok := kinds[*name]
	if !ok {
		return fmt.Errorf("unknown ledger %q", *name)
	}
	if kind != want {
		return fmt.Errorf("ledger %q is %s, want %s", *name, kind, want)
	}
	return nil
}

// resolveAccount accepts a principal or the name of a ledger declared in the
// same document.
func resolveAccount(value string, kinds map[string]core.Kind) ([20]byte, error) {
	name := core.NormalizeLedgerName(value)
	if _, ok := kinds[name]; ok {
		return core.LedgerAddress(name), nil
	}
	return crypto.ParseAddress(value)
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}
