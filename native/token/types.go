package token

import (
	"rewardcenter/crypto"
)

// ProgramID identifies the token program.
var ProgramID = crypto.ProgramAddress("token")

// NativeMint is the mint of the ledger's payment currency.
var NativeMint, nativeMintBump = crypto.MustFindProgramAddress([][]byte{[]byte("native_mint")}, ProgramID)

// NativeMintSigner is the program authority over the native mint address,
// used once at genesis to initialize it.
func NativeMintSigner() crypto.Authority {
	return crypto.NewAuthority(ProgramID, nativeMintBump, []byte("native_mint"))
}

// NativeDecimals is the precision of the payment currency.
const NativeDecimals = 9

// Mint describes a fungible or non-fungible token type.
type Mint struct {
	Authority crypto.Address `json:"authority"`
	Supply    uint64         `json:"supply"`
	Decimals  uint8          `json:"decimals"`
}

// Clone returns a copy of the mint.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Account holds a balance of one mint for one owner. Token accounts always
// live at the associated address of (owner, mint).
type Account struct {
	Mint   crypto.Address `json:"mint"`
	Owner  crypto.Address `json:"owner"`
	Amount uint64         `json:"amount"`
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// FindAssociatedTokenAddress derives the token account of owner for mint.
func FindAssociatedTokenAddress(owner, mint crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{owner[:], ProgramID[:], mint[:]}, ProgramID)
}

// FindMetadataAddress derives the metadata address identifying an NFT mint.
func FindMetadataAddress(mint crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{[]byte("metadata"), ProgramID[:], mint[:]}, ProgramID)
}
