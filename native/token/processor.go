package token

import (
	"fmt"

	"rewardcenter/core/types"
	"rewardcenter/crypto"
)

const (
	ixInitializeMint          = "initialize_mint"
	ixCreateAssociatedAccount = "create_associated_account"
	ixMintTo                  = "mint_to"
	ixTransfer                = "transfer"
)

var (
	discInitializeMint          = types.InstructionDiscriminator(ixInitializeMint)
	discCreateAssociatedAccount = types.InstructionDiscriminator(ixCreateAssociatedAccount)
	discMintTo                  = types.InstructionDiscriminator(ixMintTo)
	discTransfer                = types.InstructionDiscriminator(ixTransfer)
)

type initializeMintParams struct {
	Authority crypto.Address
	Decimals  uint8
}

type amountParams struct {
	Amount uint64
}

// ID implements the runtime program interface.
func (e *Engine) ID() crypto.Address { return ProgramID }

// Process decodes and executes a token instruction.
func (e *Engine) Process(ctx *types.InvokeContext) error {
	disc, body, err := types.SplitInstructionData(ctx.Data)
	if err != nil {
		return err
	}
	switch disc {
	case discInitializeMint:
		var params initializeMintParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		mint, err := ctx.Account(0, "mint")
		if err != nil {
			return err
		}
		return e.InitializeMint(ctx.Signers, mint, params.Authority, params.Decimals)
	case discCreateAssociatedAccount:
		account, err := ctx.Account(1, "account")
		if err != nil {
			return err
		}
		owner, err := ctx.Account(2, "owner")
		if err != nil {
			return err
		}
		mint, err := ctx.Account(3, "mint")
		if err != nil {
			return err
		}
		if expected, _ := FindAssociatedTokenAddress(owner, mint); expected != account {
			return ErrAddressMismatch
		}
		_, err = e.EnsureAccount(owner, mint)
		return err
	case discMintTo:
		var params amountParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		mint, err := ctx.Account(0, "mint")
		if err != nil {
			return err
		}
		dest, err := ctx.Account(1, "destination")
		if err != nil {
			return err
		}
		return e.MintTo(ctx.Signers, mint, dest, params.Amount)
	case discTransfer:
		var params amountParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		src, err := ctx.Account(0, "source")
		if err != nil {
			return err
		}
		dst, err := ctx.Account(1, "destination")
		if err != nil {
			return err
		}
		return e.Transfer(ctx.Signers, src, dst, params.Amount)
	default:
		return fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, disc)
	}
}

// NewInitializeMintInstruction creates a mint at mint; mint must sign.
func NewInitializeMintInstruction(mint, authority crypto.Address, decimals uint8) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixInitializeMint, initializeMintParams{Authority: authority, Decimals: decimals})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program:  ProgramID,
		Accounts: []types.AccountMeta{types.Writable(mint, true)},
		Data:     data,
	}, nil
}

// NewCreateAssociatedAccountInstruction creates owner's token account for
// mint, paid for by payer.
func NewCreateAssociatedAccountInstruction(payer, owner, mint crypto.Address) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixCreateAssociatedAccount, nil)
	if err != nil {
		return types.Instruction{}, err
	}
	account, _ := FindAssociatedTokenAddress(owner, mint)
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(payer, true),
			types.Writable(account, false),
			types.ReadOnly(owner, false),
			types.ReadOnly(mint, false),
		},
		Data: data,
	}, nil
}

// NewMintToInstruction issues amount of mint into dest.
func NewMintToInstruction(mint, dest, authority crypto.Address, amount uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixMintTo, amountParams{Amount: amount})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(mint, false),
			types.Writable(dest, false),
			types.ReadOnly(authority, true),
		},
		Data: data,
	}, nil
}

// NewTransferInstruction moves amount from src to dst, signed by owner.
func NewTransferInstruction(src, dst, owner crypto.Address, amount uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixTransfer, amountParams{Amount: amount})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(src, false),
			types.Writable(dst, false),
			types.ReadOnly(owner, true),
		},
		Data: data,
	}, nil
}
