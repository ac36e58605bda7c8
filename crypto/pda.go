package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted for a derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds the length of a single seed.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("crypto: seed length exceeded")
	ErrInvalidSeeds          = errors.New("crypto: seeds derive an on-curve address")
	ErrNoViableBump          = errors.New("crypto: unable to find a viable bump seed")
)

// IsOnCurve reports whether the 32 bytes are the x-coordinate of a point on
// secp256k1, in which case a private key for the address could exist.
func IsOnCurve(b []byte) bool {
	if len(b) != AddressLength {
		return false
	}
	compressed := make([]byte, 0, AddressLength+1)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, b...)
	_, err := crypto.DecompressPubkey(compressed)
	return err == nil
}

// CreateProgramAddress derives the address for the exact seeds (bump
// included) under program. Seeds producing an on-curve result are rejected.
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrMaxSeedLengthExceeded
	}
	parts := make([][]byte, 0, len(seeds)+2)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, ErrMaxSeedLengthExceeded
		}
		parts = append(parts, seed)
	}
	parts = append(parts, program[:], []byte(pdaMarker))
	hash := crypto.Keccak256(parts...)
	if IsOnCurve(hash) {
		return Address{}, ErrInvalidSeeds
	}
	var addr Address
	copy(addr[:], hash)
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 downwards and returns the
// first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// MustFindProgramAddress panics when derivation fails; only for well-known
// constant seeds.
func MustFindProgramAddress(seeds [][]byte, program Address) (Address, uint8) {
	addr, bump, err := FindProgramAddress(seeds, program)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// Authority lets a program act as one of its derived addresses without a
// private key. It carries the derivation seeds and bump; holders prove
// authority by re-deriving the address.
type Authority struct {
	program Address
	seeds   [][]byte
	bump    uint8
}

// NewAuthority binds seeds and bump to the deriving program.
func NewAuthority(program Address, bump uint8, seeds ...[]byte) Authority {
	cloned := make([][]byte, len(seeds))
	for i, seed := range seeds {
		cloned[i] = append([]byte(nil), seed...)
	}
	return Authority{program: program, seeds: cloned, bump: bump}
}

// Program returns the program the authority was derived under.
func (a Authority) Program() Address { return a.program }

// Address re-derives the address the authority signs for.
func (a Authority) Address() (Address, error) {
	seeds := make([][]byte, 0, len(a.seeds)+1)
	seeds = append(seeds, a.seeds...)
	seeds = append(seeds, []byte{a.bump})
	return CreateProgramAddress(seeds, a.program)
}

// Authorizes reports whether the authority proves control over addr.
func (a Authority) Authorizes(addr Address) bool {
	derived, err := a.Address()
	if err != nil {
		return false
	}
	return derived == addr
}

func (a Authority) String() string {
	addr, err := a.Address()
	if err != nil {
		return fmt.Sprintf("authority(invalid: %v)", err)
	}
	return addr.String()
}

// ProgramAddress returns the well-known identifier of a native program.
func ProgramAddress(name string) Address {
	var addr Address
	copy(addr[:], crypto.Keccak256([]byte("program:"+name)))
	return addr
}

// Uint64Seed encodes v as an 8-byte little-endian seed.
func Uint64Seed(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}
