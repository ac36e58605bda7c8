package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses.
const AddressPrefix = "rwd"

// AddressLength is the size of every ledger address in bytes.
const AddressLength = 32

// Address identifies a ledger account. Wallet addresses are the x-coordinate
// of a secp256k1 public key; program-derived addresses are hashes that are
// guaranteed not to be a valid x-coordinate.
type Address [AddressLength]byte

// ZeroAddress is the all-zero address. It never belongs to a wallet.
var ZeroAddress Address

var ErrInvalidAddress = errors.New("crypto: invalid address")

// BytesToAddress converts a 32-byte slice into an Address.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Hex returns the lowercase hex encoding of the address.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText renders the address in bech32 form.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts bech32 or 0x-less hex input.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// DecodeAddress parses a bech32 address with the rwd prefix. Plain 64
// character hex strings are accepted as well for tooling convenience.
func DecodeAddress(addrStr string) (Address, error) {
	if len(addrStr) == 2*AddressLength {
		raw, err := hex.DecodeString(addrStr)
		if err == nil {
			return BytesToAddress(raw)
		}
	}
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return BytesToAddress(conv)
}

// MustDecodeAddress is DecodeAddress for constants; it panics on bad input.
func MustDecodeAddress(addrStr string) Address {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		panic(err)
	}
	return addr
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address returns the wallet address controlled by the key.
func (k *PrivateKey) Address() Address {
	return k.PubKey().Address()
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, k.PrivateKey)
}

// Address is the x-coordinate of the compressed public key.
func (k *PublicKey) Address() Address {
	compressed := crypto.CompressPubkey(k.PublicKey)
	var addr Address
	copy(addr[:], compressed[1:])
	return addr
}

// PrivateKeyFromBytes parses a raw 32-byte secp256k1 secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// RecoverSigner returns the wallet address that produced sig over digest.
func RecoverSigner(digest, sig []byte) (Address, error) {
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return Address{}, err
	}
	return (&PublicKey{pub}).Address(), nil
}

// Keccak256 hashes the concatenation of the supplied byte slices.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}
