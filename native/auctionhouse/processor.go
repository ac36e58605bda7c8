package auctionhouse

import (
	"fmt"

	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/token"
)

const (
	ixCreateAuctionHouse   = "create_auction_house"
	ixDelegateAuctioneer   = "delegate_auctioneer"
	ixWithdrawFromTreasury = "withdraw_from_treasury"
	ixSell                 = "sell"
	ixCancelSale           = "cancel_sale"
	ixBid                  = "bid"
	ixCancelBid            = "cancel_bid"
	ixExecuteSale          = "execute_sale"
)

var (
	discCreateAuctionHouse   = types.InstructionDiscriminator(ixCreateAuctionHouse)
	discDelegateAuctioneer   = types.InstructionDiscriminator(ixDelegateAuctioneer)
	discWithdrawFromTreasury = types.InstructionDiscriminator(ixWithdrawFromTreasury)
	discSell                 = types.InstructionDiscriminator(ixSell)
	discCancelSale           = types.InstructionDiscriminator(ixCancelSale)
	discBid                  = types.InstructionDiscriminator(ixBid)
	discCancelBid            = types.InstructionDiscriminator(ixCancelBid)
	discExecuteSale          = types.InstructionDiscriminator(ixExecuteSale)
)

type createParams struct {
	TreasuryWithdrawalDestination crypto.Address
	SellerFeeBasisPoints          uint16
	RequiresSignOff               bool
	CanChangeSalePrice            bool
}

type amountParams struct {
	Amount uint64
}

type tradeParams struct {
	Price     uint64
	TokenSize uint64
}

// ID implements the runtime program interface.
func (e *Engine) ID() crypto.Address { return ProgramID }

// Process decodes and executes an auction house instruction.
func (e *Engine) Process(ctx *types.InvokeContext) error {
	disc, body, err := types.SplitInstructionData(ctx.Data)
	if err != nil {
		return err
	}
	switch disc {
	case discCreateAuctionHouse:
		var params createParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		accts, err := accountList(ctx, "authority", "auction_house", "treasury_mint")
		if err != nil {
			return err
		}
		house, err := e.CreateAuctionHouse(ctx.Signers, CreateAuctionHouseArgs{
			Authority:                     accts[0],
			TreasuryMint:                  accts[2],
			TreasuryWithdrawalDestination: params.TreasuryWithdrawalDestination,
			SellerFeeBasisPoints:          params.SellerFeeBasisPoints,
			RequiresSignOff:               params.RequiresSignOff,
			CanChangeSalePrice:            params.CanChangeSalePrice,
		})
		if err != nil {
			return err
		}
		if house != accts[1] {
			return fmt.Errorf("%w: auction house", ErrAddressMismatch)
		}
		return nil
	case discDelegateAuctioneer:
		accts, err := accountList(ctx, "authority", "auction_house", "auctioneer")
		if err != nil {
			return err
		}
		return e.DelegateAuctioneer(ctx.Signers, accts[1], accts[2])
	case discWithdrawFromTreasury:
		var params amountParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		accts, err := accountList(ctx, "authority", "auction_house")
		if err != nil {
			return err
		}
		return e.WithdrawFromTreasury(ctx.Signers, accts[1], params.Amount)
	case discSell, discBid:
		var params tradeParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		accts, err := accountList(ctx, "wallet", "auction_house", "mint")
		if err != nil {
			return err
		}
		if disc == discSell {
			_, err = e.Sell(ctx.Signers, SellArgs{AuctionHouse: accts[1], Seller: accts[0], Mint: accts[2], Price: params.Price, TokenSize: params.TokenSize})
		} else {
			_, err = e.Bid(ctx.Signers, BidArgs{AuctionHouse: accts[1], Buyer: accts[0], Mint: accts[2], Price: params.Price, TokenSize: params.TokenSize})
		}
		return err
	case discCancelSale, discCancelBid:
		accts, err := accountList(ctx, "wallet", "auction_house", "mint", "wallet_token", "escrow", "escrow_token", "trade_state")
		if err != nil {
			return err
		}
		handle := EscrowHandle{AuctionHouse: accts[1], TradeState: accts[6]}
		if disc == discCancelSale {
			return e.CancelSale(ctx.Signers, handle)
		}
		return e.CancelBid(ctx.Signers, handle)
	case discExecuteSale:
		accts, err := accountList(ctx, "auction_house", "sell_trade_state", "bid_trade_state")
		if err != nil {
			return err
		}
		_, err = e.ExecuteSale(ctx.Signers,
			EscrowHandle{AuctionHouse: accts[0], TradeState: accts[1]},
			EscrowHandle{AuctionHouse: accts[0], TradeState: accts[2]})
		return err
	default:
		return fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, disc)
	}
}

func accountList(ctx *types.InvokeContext, names ...string) ([]crypto.Address, error) {
	out := make([]crypto.Address, len(names))
	for i, name := range names {
		addr, err := ctx.Account(i, name)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

// SellAccounts lists the accounts Sell and CancelSale touch.
func SellAccounts(house, seller, mint crypto.Address, price, size uint64) []types.AccountMeta {
	sellerToken, _ := token.FindAssociatedTokenAddress(seller, mint)
	escrowOwner, _ := FindEscrowAddress(house, seller)
	escrowToken, _ := token.FindAssociatedTokenAddress(escrowOwner, mint)
	ts, _ := FindTradeStateAddress(SideSell, seller, house, mint, price, size)
	return []types.AccountMeta{
		types.ReadOnly(seller, true),
		types.ReadOnly(house, false),
		types.ReadOnly(mint, false),
		types.Writable(sellerToken, false),
		types.ReadOnly(escrowOwner, false),
		types.Writable(escrowToken, false),
		types.Writable(ts, false),
	}
}

// BidAccounts lists the accounts Bid and CancelBid touch.
func BidAccounts(house, treasuryMint, buyer, mint crypto.Address, price, size uint64) []types.AccountMeta {
	buyerToken, _ := token.FindAssociatedTokenAddress(buyer, treasuryMint)
	escrowOwner, _ := FindEscrowAddress(house, buyer)
	escrowToken, _ := token.FindAssociatedTokenAddress(escrowOwner, treasuryMint)
	ts, _ := FindTradeStateAddress(SideBid, buyer, house, mint, price, size)
	return []types.AccountMeta{
		types.ReadOnly(buyer, true),
		types.ReadOnly(house, false),
		types.ReadOnly(mint, false),
		types.Writable(buyerToken, false),
		types.ReadOnly(escrowOwner, false),
		types.Writable(escrowToken, false),
		types.Writable(ts, false),
	}
}

// ExecuteSaleAccounts lists the accounts ExecuteSale touches.
func ExecuteSaleAccounts(houseAddr crypto.Address, house *AuctionHouse, seller, buyer, mint crypto.Address, price, size uint64) []types.AccountMeta {
	sellTS, _ := FindTradeStateAddress(SideSell, seller, houseAddr, mint, price, size)
	bidTS, _ := FindTradeStateAddress(SideBid, buyer, houseAddr, mint, price, size)
	sellerEscrow, _ := FindEscrowAddress(houseAddr, seller)
	sellerEscrowToken, _ := token.FindAssociatedTokenAddress(sellerEscrow, mint)
	buyerToken, _ := token.FindAssociatedTokenAddress(buyer, mint)
	buyerEscrow, _ := FindEscrowAddress(houseAddr, buyer)
	buyerEscrowPayment, _ := token.FindAssociatedTokenAddress(buyerEscrow, house.TreasuryMint)
	sellerPayment, _ := token.FindAssociatedTokenAddress(seller, house.TreasuryMint)
	return []types.AccountMeta{
		types.ReadOnly(houseAddr, false),
		types.Writable(sellTS, false),
		types.Writable(bidTS, false),
		types.Writable(sellerEscrowToken, false),
		types.Writable(buyerToken, false),
		types.Writable(buyerEscrowPayment, false),
		types.Writable(sellerPayment, false),
		types.Writable(house.Treasury, false),
		types.ReadOnly(seller, false),
		types.ReadOnly(buyer, false),
	}
}

// NewCreateAuctionHouseInstruction builds create_auction_house for args.
func NewCreateAuctionHouseInstruction(args CreateAuctionHouseArgs) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixCreateAuctionHouse, createParams{
		TreasuryWithdrawalDestination: args.TreasuryWithdrawalDestination,
		SellerFeeBasisPoints:          args.SellerFeeBasisPoints,
		RequiresSignOff:               args.RequiresSignOff,
		CanChangeSalePrice:            args.CanChangeSalePrice,
	})
	if err != nil {
		return types.Instruction{}, err
	}
	house, _ := FindAuctionHouseAddress(args.Authority, args.TreasuryMint)
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnly(args.Authority, true),
			types.Writable(house, false),
			types.ReadOnly(args.TreasuryMint, false),
			types.Writable(FindTreasuryAddress(house, args.TreasuryMint), false),
		},
		Data: data,
	}, nil
}

// NewDelegateAuctioneerInstruction builds delegate_auctioneer.
func NewDelegateAuctioneerInstruction(authority, house, auctioneer crypto.Address) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixDelegateAuctioneer, nil)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnly(authority, true),
			types.Writable(house, false),
			types.ReadOnly(auctioneer, false),
		},
		Data: data,
	}, nil
}

// NewWithdrawFromTreasuryInstruction builds withdraw_from_treasury for the
// house record stored at houseAddr.
func NewWithdrawFromTreasuryInstruction(houseAddr crypto.Address, house *AuctionHouse, amount uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixWithdrawFromTreasury, amountParams{Amount: amount})
	if err != nil {
		return types.Instruction{}, err
	}
	dest, _ := token.FindAssociatedTokenAddress(house.TreasuryWithdrawalDestination, house.TreasuryMint)
	return types.Instruction{
		Program: ProgramID,
		Accounts: []types.AccountMeta{
			types.ReadOnly(house.Authority, true),
			types.ReadOnly(houseAddr, false),
			types.Writable(house.Treasury, false),
			types.Writable(dest, false),
		},
		Data: data,
	}, nil
}

// NewSellInstruction builds a direct sell on a house without an auctioneer.
func NewSellInstruction(house, seller, mint crypto.Address, price, size uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixSell, tradeParams{Price: price, TokenSize: size})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{Program: ProgramID, Accounts: SellAccounts(house, seller, mint, price, size), Data: data}, nil
}

// NewCancelSaleInstruction builds cancel_sale for the matching sell.
func NewCancelSaleInstruction(house, seller, mint crypto.Address, price, size uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixCancelSale, nil)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{Program: ProgramID, Accounts: SellAccounts(house, seller, mint, price, size), Data: data}, nil
}

// NewBidInstruction builds a direct bid on a house without an auctioneer.
func NewBidInstruction(house, treasuryMint, buyer, mint crypto.Address, price, size uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixBid, tradeParams{Price: price, TokenSize: size})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{Program: ProgramID, Accounts: BidAccounts(house, treasuryMint, buyer, mint, price, size), Data: data}, nil
}

// NewCancelBidInstruction builds cancel_bid for the matching bid.
func NewCancelBidInstruction(house, treasuryMint, buyer, mint crypto.Address, price, size uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixCancelBid, nil)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{Program: ProgramID, Accounts: BidAccounts(house, treasuryMint, buyer, mint, price, size), Data: data}, nil
}

// NewExecuteSaleInstruction builds execute_sale for a matching pair.
func NewExecuteSaleInstruction(houseAddr crypto.Address, house *AuctionHouse, seller, buyer, mint crypto.Address, price, size uint64) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(ixExecuteSale, nil)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		Program:  ProgramID,
		Accounts: ExecuteSaleAccounts(houseAddr, house, seller, buyer, mint, price, size),
		Data:     data,
	}, nil
}
