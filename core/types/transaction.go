package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardcenter/crypto"
)

// MaxInstructions bounds the number of instructions in one transaction.
const MaxInstructions = 16

var (
	ErrNoInstructions       = errors.New("types: transaction carries no instructions")
	ErrTooManyInstructions  = errors.New("types: too many instructions")
	ErrMissingSignature     = errors.New("types: missing signature")
	ErrUnexpectedSignatures = errors.New("types: unexpected signatures")
)

// AccountMeta declares an account an instruction touches. Programs can only
// read declared accounts and only write the ones flagged writable.
type AccountMeta struct {
	Address  crypto.Address `json:"address"`
	Signer   bool           `json:"signer"`
	Writable bool           `json:"writable"`
}

// Writable is a helper for building instruction account lists.
func Writable(addr crypto.Address, signer bool) AccountMeta {
	return AccountMeta{Address: addr, Signer: signer, Writable: true}
}

// ReadOnly is a helper for building instruction account lists.
func ReadOnly(addr crypto.Address, signer bool) AccountMeta {
	return AccountMeta{Address: addr, Signer: signer}
}

// Instruction is a single program invocation.
type Instruction struct {
	Program  crypto.Address `json:"program"`
	Accounts []AccountMeta  `json:"accounts"`
	Data     []byte         `json:"data"`
}

// Transaction groups instructions that land atomically. Every account flagged
// as signer in any instruction must have a matching signature, in the order
// returned by RequiredSigners.
type Transaction struct {
	Nonce        uint64         `json:"nonce"`
	Payer        crypto.Address `json:"payer"`
	Instructions []Instruction  `json:"instructions"`
	Signatures   [][]byte       `json:"signatures"`
}

type unsignedTx struct {
	Nonce        uint64
	Payer        crypto.Address
	Instructions []Instruction
}

// SigningHash is the digest every signer signs.
func (tx *Transaction) SigningHash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(unsignedTx{Nonce: tx.Nonce, Payer: tx.Payer, Instructions: tx.Instructions})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Hash identifies the signed transaction.
func (tx *Transaction) Hash() ([32]byte, error) {
	var out [32]byte
	encoded, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return out, err
	}
	copy(out[:], crypto.Keccak256(encoded))
	return out, nil
}

// RequiredSigners lists the payer followed by every other signer account in
// first-seen order.
func (tx *Transaction) RequiredSigners() []crypto.Address {
	seen := map[crypto.Address]struct{}{tx.Payer: {}}
	signers := []crypto.Address{tx.Payer}
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.Signer {
				continue
			}
			if _, ok := seen[meta.Address]; ok {
				continue
			}
			seen[meta.Address] = struct{}{}
			signers = append(signers, meta.Address)
		}
	}
	return signers
}

// Sign appends signatures for each key in RequiredSigners order. Keys may be
// supplied in any order; a missing key is an error.
func (tx *Transaction) Sign(keys ...*crypto.PrivateKey) error {
	digest, err := tx.SigningHash()
	if err != nil {
		return err
	}
	byAddr := make(map[crypto.Address]*crypto.PrivateKey, len(keys))
	for _, key := range keys {
		if key != nil {
			byAddr[key.Address()] = key
		}
	}
	required := tx.RequiredSigners()
	sigs := make([][]byte, 0, len(required))
	for _, addr := range required {
		key, ok := byAddr[addr]
		if !ok {
			return fmt.Errorf("%w for %s", ErrMissingSignature, addr)
		}
		sig, err := key.Sign(digest)
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}
	tx.Signatures = sigs
	return nil
}

// VerifySignatures checks every signature and returns the verified signers.
func (tx *Transaction) VerifySignatures() (crypto.SignerSet, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrNoInstructions
	}
	if len(tx.Instructions) > MaxInstructions {
		return nil, ErrTooManyInstructions
	}
	required := tx.RequiredSigners()
	if len(tx.Signatures) < len(required) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrMissingSignature, len(tx.Signatures), len(required))
	}
	if len(tx.Signatures) > len(required) {
		return nil, ErrUnexpectedSignatures
	}
	digest, err := tx.SigningHash()
	if err != nil {
		return nil, err
	}
	set := make(crypto.SignerSet, len(required))
	for i, addr := range required {
		recovered, err := crypto.RecoverSigner(digest, tx.Signatures[i])
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		if recovered != addr {
			return nil, fmt.Errorf("signature %d: signed by %s, expected %s", i, recovered, addr)
		}
		set[addr] = struct{}{}
	}
	return set, nil
}
