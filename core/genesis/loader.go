package genesis

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"rewardcenter/core/state"
	"rewardcenter/crypto"
	"rewardcenter/native/token"
	"rewardcenter/storage"
	"rewardcenter/storage/trie"
)

// Build writes the genesis state described by spec into db and returns the
// committed root. Allocations are applied in address order so every node
// derives the same root.
func Build(spec *GenesisSpec, db storage.Database) (common.Hash, error) {
	if spec == nil {
		return common.Hash{}, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return common.Hash{}, fmt.Errorf("database must not be nil")
	}
	if spec.allocations == nil {
		if err := spec.Validate(); err != nil {
			return common.Hash{}, err
		}
	}
	stateTrie, err := trie.NewTrie(db, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("init state trie: %w", err)
	}
	manager := state.NewManager(stateTrie)
	tokens := token.NewEngine()
	tokens.SetState(manager)

	authority := token.NativeMint
	if spec.hasAuthority {
		authority = spec.authority
	}
	signer := crypto.Signers{token.NativeMintSigner(), crypto.NewSignerSet(authority)}
	if err := tokens.InitializeMint(signer, token.NativeMint, authority, token.NativeDecimals); err != nil {
		return common.Hash{}, fmt.Errorf("native mint: %w", err)
	}

	holders := make([]crypto.Address, 0, len(spec.allocations))
	for addr := range spec.allocations {
		holders = append(holders, addr)
	}
	sort.Slice(holders, func(i, j int) bool { return bytes.Compare(holders[i][:], holders[j][:]) < 0 })
	for _, holder := range holders {
		account, err := tokens.EnsureAccount(holder, token.NativeMint)
		if err != nil {
			return common.Hash{}, fmt.Errorf("alloc %s: %w", holder, err)
		}
		if amount := spec.allocations[holder]; amount > 0 {
			if err := tokens.MintTo(signer, token.NativeMint, account, amount); err != nil {
				return common.Hash{}, fmt.Errorf("alloc %s: %w", holder, err)
			}
		}
	}
	if err := manager.SetStateVersion(state.StateVersion); err != nil {
		return common.Hash{}, err
	}
	root, err := stateTrie.Commit(0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit genesis: %w", err)
	}
	return root, nil
}
