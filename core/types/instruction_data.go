package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardcenter/crypto"
)

// DiscriminatorLength is the size of the instruction selector prefix.
const DiscriminatorLength = 8

var ErrShortInstructionData = errors.New("types: instruction data too short")

// InstructionDiscriminator returns keccak256("global:<name>")[:8].
func InstructionDiscriminator(name string) [DiscriminatorLength]byte {
	var out [DiscriminatorLength]byte
	copy(out[:], crypto.Keccak256([]byte("global:"+name)))
	return out
}

// EncodeInstructionData prefixes the RLP encoding of params with the
// instruction discriminator.
func EncodeInstructionData(name string, params interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	out := append([]byte(nil), disc[:]...)
	if params == nil {
		return out, nil
	}
	body, err := rlp.EncodeToBytes(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", name, err)
	}
	return append(out, body...), nil
}

// SplitInstructionData separates the discriminator from the encoded params.
func SplitInstructionData(data []byte) ([DiscriminatorLength]byte, []byte, error) {
	var disc [DiscriminatorLength]byte
	if len(data) < DiscriminatorLength {
		return disc, nil, ErrShortInstructionData
	}
	copy(disc[:], data[:DiscriminatorLength])
	return disc, data[DiscriminatorLength:], nil
}

// DecodeInstructionParams decodes the params body into out.
func DecodeInstructionParams(body []byte, out interface{}) error {
	if err := rlp.DecodeBytes(body, out); err != nil {
		return fmt.Errorf("decode instruction params: %w", err)
	}
	return nil
}

// InvokeContext is what the host hands a program for one instruction.
type InvokeContext struct {
	Signers   crypto.SignerSet
	Accounts  []AccountMeta
	Data      []byte
	Timestamp uint64
	Seq       uint64
}

// Account returns the i-th declared account or an error naming the slot.
func (ctx *InvokeContext) Account(i int, name string) (crypto.Address, error) {
	if ctx == nil || i < 0 || i >= len(ctx.Accounts) {
		return crypto.Address{}, fmt.Errorf("%w: %s (index %d)", ErrMissingAccount, name, i)
	}
	return ctx.Accounts[i].Address, nil
}
