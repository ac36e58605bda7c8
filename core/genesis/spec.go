package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rewardcenter/crypto"
)

// GenesisSpec seeds a fresh ledger: the native mint and its initial holders.
type GenesisSpec struct {
	GenesisTime string `json:"genesisTime"`
	// NativeMintAuthority may issue more of the native currency later. When
	// empty the mint is its own authority and supply is fixed at genesis.
	NativeMintAuthority string `json:"nativeMintAuthority,omitempty"`
	// Alloc maps bech32 wallet addresses to native base units.
	Alloc map[string]string `json:"alloc"`

	genesisTimestamp time.Time
	authority        crypto.Address
	hasAuthority     bool
	allocations      map[crypto.Address]uint64
}

// LoadGenesisSpec reads and validates the JSON genesis file at path.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Validate parses the addresses, amounts and timestamp of the spec.
func (s *GenesisSpec) Validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts
	s.hasAuthority = false
	if trimmed := strings.TrimSpace(s.NativeMintAuthority); trimmed != "" {
		addr, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			return fmt.Errorf("nativeMintAuthority: %w", err)
		}
		s.authority = addr
		s.hasAuthority = true
	}
	s.allocations = make(map[crypto.Address]uint64, len(s.Alloc))
	var total uint64
	for rawAddr, rawAmount := range s.Alloc {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(rawAddr))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", rawAddr, err)
		}
		amount, err := strconv.ParseUint(strings.TrimSpace(rawAmount), 10, 64)
		if err != nil {
			return fmt.Errorf("alloc %q: invalid amount %q", rawAddr, rawAmount)
		}
		if total+amount < total {
			return fmt.Errorf("alloc %q: total supply overflows", rawAddr)
		}
		total += amount
		s.allocations[addr] += amount
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}
