package crypto

// Signer vouches for addresses inside a transaction: either wallets whose
// signatures were verified or a program acting through a derived Authority.
type Signer interface {
	Authorizes(addr Address) bool
}

// SignerSet is the set of wallets that signed the current transaction.
type SignerSet map[Address]struct{}

// NewSignerSet builds a set from the supplied wallets.
func NewSignerSet(addrs ...Address) SignerSet {
	set := make(SignerSet, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return set
}

// Authorizes reports whether addr signed.
func (s SignerSet) Authorizes(addr Address) bool {
	if s == nil {
		return false
	}
	_, ok := s[addr]
	return ok
}

// Signers combines several signers; any of them may authorize.
type Signers []Signer

func (s Signers) Authorizes(addr Address) bool {
	for _, signer := range s {
		if signer != nil && signer.Authorizes(addr) {
			return true
		}
	}
	return false
}
