package state

import (
	"fmt"

	"rewardcenter/core/types"
	"rewardcenter/crypto"
)

// Guard restricts writes to the accounts an instruction declared writable.
type Guard struct {
	declared map[crypto.Address]bool
}

// NewGuard builds a guard from an instruction's account list. An address
// listed more than once is writable if any entry says so.
func NewGuard(metas []types.AccountMeta) *Guard {
	declared := make(map[crypto.Address]bool, len(metas))
	for _, meta := range metas {
		declared[meta.Address] = declared[meta.Address] || meta.Writable
	}
	return &Guard{declared: declared}
}

// CheckWrite reports whether addr may be written.
func (g *Guard) CheckWrite(addr crypto.Address) error {
	if g == nil {
		return nil
	}
	writable, ok := g.declared[addr]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUndeclaredAccount, addr)
	}
	if !writable {
		return fmt.Errorf("%w: %s", types.ErrReadOnlyAccount, addr)
	}
	return nil
}
