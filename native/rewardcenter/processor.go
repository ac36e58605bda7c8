package rewardcenter

import (
	"fmt"

	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/token"
)

const (
	ixCreateRewardCenter        = "create_reward_center"
	ixEditRewardCenter          = "edit_reward_center"
	ixWithdrawRewardCenterFunds = "withdraw_reward_center_funds"
	ixCreateListing             = "create_listing"
	ixUpdateListing             = "update_listing"
	ixCloseListing              = "close_listing"
	ixCreateOffer               = "create_offer"
	ixCloseOffer                = "close_offer"
	ixBuyListing                = "buy_listing"
	ixAcceptOffer               = "accept_offer"
)

var (
	discCreateRewardCenter        = types.InstructionDiscriminator(ixCreateRewardCenter)
	discEditRewardCenter          = types.InstructionDiscriminator(ixEditRewardCenter)
	discWithdrawRewardCenterFunds = types.InstructionDiscriminator(ixWithdrawRewardCenterFunds)
	discCreateListing             = types.InstructionDiscriminator(ixCreateListing)
	discUpdateListing             = types.InstructionDiscriminator(ixUpdateListing)
	discCloseListing              = types.InstructionDiscriminator(ixCloseListing)
	discCreateOffer               = types.InstructionDiscriminator(ixCreateOffer)
	discCloseOffer                = types.InstructionDiscriminator(ixCloseOffer)
	discBuyListing                = types.InstructionDiscriminator(ixBuyListing)
	discAcceptOffer               = types.InstructionDiscriminator(ixAcceptOffer)
)

type rulesParams struct {
	Rules RewardRules
}

type amountParams struct {
	Amount uint64
}

type termsParams struct {
	Price     uint64
	TokenSize uint64
}

type updateListingParams struct {
	NewPrice uint64
}

// ID implements the runtime program interface.
func (e *Engine) ID() crypto.Address { return ProgramID }

// Process decodes and executes a reward center instruction. Accounts beyond
// the ones an instruction names are the auction house and token accounts the
// adapter touches on the center's behalf.
func (e *Engine) Process(ctx *types.InvokeContext) error {
	err := e.process(ctx)
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	if isAccessError(err) {
		return wrapError(KindAddressMismatch, "instruction accounts", err)
	}
	return err
}

func (e *Engine) process(ctx *types.InvokeContext) error {
	disc, body, err := types.SplitInstructionData(ctx.Data)
	if err != nil {
		return err
	}
	switch disc {
	case discCreateRewardCenter:
		var params rulesParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		a, err := accountList(ctx, "wallet", "mint", "auction_house", "reward_center", "treasury")
		if err != nil {
			return err
		}
		return e.CreateRewardCenter(ctx.Signers, CreateRewardCenterAccounts{
			Wallet: a[0], Mint: a[1], AuctionHouse: a[2], RewardCenter: a[3], Treasury: a[4],
		}, params.Rules)
	case discEditRewardCenter:
		var params rulesParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		a, err := accountList(ctx, "wallet", "auction_house", "reward_center")
		if err != nil {
			return err
		}
		return e.EditRewardCenter(ctx.Signers, EditRewardCenterAccounts{
			Wallet: a[0], AuctionHouse: a[1], RewardCenter: a[2],
		}, params.Rules)
	case discWithdrawRewardCenterFunds:
		var params amountParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		a, err := accountList(ctx, "wallet", "auction_house", "reward_center", "treasury", "destination")
		if err != nil {
			return err
		}
		return e.WithdrawRewardCenterFunds(ctx.Signers, WithdrawAccounts{
			Wallet: a[0], AuctionHouse: a[1], RewardCenter: a[2], Treasury: a[3], Destination: a[4],
		}, params.Amount)
	case discCreateListing, discUpdateListing, discCloseListing:
		a, err := accountList(ctx, "seller", "auction_house", "reward_center", "mint", "metadata", "listing", "cursor")
		if err != nil {
			return err
		}
		accts := ListingAccounts{Seller: a[0], AuctionHouse: a[1], RewardCenter: a[2], Mint: a[3], Metadata: a[4], Listing: a[5], Cursor: a[6]}
		switch disc {
		case discCreateListing:
			var params termsParams
			if err := types.DecodeInstructionParams(body, &params); err != nil {
				return err
			}
			return e.CreateListing(ctx.Signers, accts, params.Price, params.TokenSize)
		case discUpdateListing:
			var params updateListingParams
			if err := types.DecodeInstructionParams(body, &params); err != nil {
				return err
			}
			return e.UpdateListing(ctx.Signers, accts, params.NewPrice)
		default:
			return e.CloseListing(ctx.Signers, accts)
		}
	case discCreateOffer, discCloseOffer:
		a, err := accountList(ctx, "buyer", "auction_house", "reward_center", "mint", "metadata", "offer", "cursor")
		if err != nil {
			return err
		}
		accts := OfferAccounts{Buyer: a[0], AuctionHouse: a[1], RewardCenter: a[2], Mint: a[3], Metadata: a[4], Offer: a[5], Cursor: a[6]}
		if disc == discCloseOffer {
			return e.CloseOffer(ctx.Signers, accts)
		}
		var params termsParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		return e.CreateOffer(ctx.Signers, accts, params.Price, params.TokenSize)
	case discBuyListing:
		var params termsParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		a, err := accountList(ctx, "buyer", "seller", "auction_house", "reward_center", "mint", "metadata", "listing", "listing_cursor", "treasury")
		if err != nil {
			return err
		}
		return e.BuyListing(ctx.Signers, BuyListingAccounts{
			Buyer: a[0], Seller: a[1], AuctionHouse: a[2], RewardCenter: a[3], Mint: a[4],
			Metadata: a[5], Listing: a[6], ListingCursor: a[7], Treasury: a[8],
		}, params.Price, params.TokenSize)
	case discAcceptOffer:
		var params termsParams
		if err := types.DecodeInstructionParams(body, &params); err != nil {
			return err
		}
		a, err := accountList(ctx, "seller", "buyer", "auction_house", "reward_center", "mint", "metadata", "listing", "listing_cursor", "offer", "offer_cursor", "treasury")
		if err != nil {
			return err
		}
		return e.AcceptOffer(ctx.Signers, AcceptOfferAccounts{
			Seller: a[0], Buyer: a[1], AuctionHouse: a[2], RewardCenter: a[3], Mint: a[4], Metadata: a[5],
			Listing: a[6], ListingCursor: a[7], Offer: a[8], OfferCursor: a[9], Treasury: a[10],
		}, params.Price, params.TokenSize)
	default:
		return fmt.Errorf("rewardcenter: unknown instruction %x", disc)
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

func instruction(name string, params interface{}, accounts ...[]types.AccountMeta) (types.Instruction, error) {
	data, err := types.EncodeInstructionData(name, params)
	if err != nil {
		return types.Instruction{}, err
	}
	var metas []types.AccountMeta
	for _, group := range accounts {
		metas = append(metas, group...)
	}
	return types.Instruction{Program: ProgramID, Accounts: metas, Data: data}, nil
}

// NewCreateRewardCenterInstruction builds create_reward_center for the house
// owned by wallet.
func NewCreateRewardCenterInstruction(wallet, rewardMint, house crypto.Address, rules RewardRules) (types.Instruction, error) {
	center, _ := FindRewardCenterAddress(house)
	return instruction(ixCreateRewardCenter, rulesParams{Rules: rules}, []types.AccountMeta{
		types.ReadOnly(wallet, true),
		types.ReadOnly(rewardMint, false),
		types.Writable(house, false),
		types.Writable(center, false),
		types.Writable(FindTreasuryAddress(center, rewardMint), false),
	})
}

// NewEditRewardCenterInstruction builds edit_reward_center.
func NewEditRewardCenterInstruction(wallet, house crypto.Address, rules RewardRules) (types.Instruction, error) {
	center, _ := FindRewardCenterAddress(house)
	return instruction(ixEditRewardCenter, rulesParams{Rules: rules}, []types.AccountMeta{
		types.ReadOnly(wallet, true),
		types.ReadOnly(house, false),
		types.Writable(center, false),
	})
}

// NewWithdrawRewardCenterFundsInstruction builds
// withdraw_reward_center_funds paying into destination, a token account of
// the reward mint.
func NewWithdrawRewardCenterFundsInstruction(wallet, house, rewardMint, destination crypto.Address, amount uint64) (types.Instruction, error) {
	center, _ := FindRewardCenterAddress(house)
	return instruction(ixWithdrawRewardCenterFunds, amountParams{Amount: amount}, []types.AccountMeta{
		types.ReadOnly(wallet, true),
		types.ReadOnly(house, false),
		types.ReadOnly(center, false),
		types.Writable(FindTreasuryAddress(center, rewardMint), false),
		types.Writable(destination, false),
	})
}

// ListingAccountsFor fills in the derived addresses for the listing of
// (seller, mint) at generation under house.
func ListingAccountsFor(seller, house, mint crypto.Address, generation uint64) ListingAccounts {
	center, _ := FindRewardCenterAddress(house)
	metadata, _ := token.FindMetadataAddress(mint)
	listing, _ := FindListingAddress(seller, metadata, center, generation)
	cursor, _ := FindListingCursorAddress(seller, metadata, center)
	return ListingAccounts{
		Seller:       seller,
		AuctionHouse: house,
		RewardCenter: center,
		Mint:         mint,
		Metadata:     metadata,
		Listing:      listing,
		Cursor:       cursor,
	}
}

// OfferAccountsFor fills in the derived addresses for the offer of
// (buyer, mint) at generation under house.
func OfferAccountsFor(buyer, house, mint crypto.Address, generation uint64) OfferAccounts {
	center, _ := FindRewardCenterAddress(house)
	metadata, _ := token.FindMetadataAddress(mint)
	offer, _ := FindOfferAddress(buyer, metadata, center, generation)
	cursor, _ := FindOfferCursorAddress(buyer, metadata, center)
	return OfferAccounts{
		Buyer:        buyer,
		AuctionHouse: house,
		RewardCenter: center,
		Mint:         mint,
		Metadata:     metadata,
		Offer:        offer,
		Cursor:       cursor,
	}
}

func (a ListingAccounts) metas(cursorWritable bool) []types.AccountMeta {
	cursor := types.ReadOnly(a.Cursor, false)
	if cursorWritable {
		cursor = types.Writable(a.Cursor, false)
	}
	return []types.AccountMeta{
		types.ReadOnly(a.Seller, true),
		types.ReadOnly(a.AuctionHouse, false),
		types.ReadOnly(a.RewardCenter, false),
		types.ReadOnly(a.Mint, false),
		types.ReadOnly(a.Metadata, false),
		types.Writable(a.Listing, false),
		cursor,
	}
}

func (a OfferAccounts) metas() []types.AccountMeta {
	return []types.AccountMeta{
		types.ReadOnly(a.Buyer, true),
		types.ReadOnly(a.AuctionHouse, false),
		types.ReadOnly(a.RewardCenter, false),
		types.ReadOnly(a.Mint, false),
		types.ReadOnly(a.Metadata, false),
		types.Writable(a.Offer, false),
		types.Writable(a.Cursor, false),
	}
}

// NewCreateListingInstruction builds create_listing.
func NewCreateListingInstruction(accts ListingAccounts, price, tokenSize uint64) (types.Instruction, error) {
	return instruction(ixCreateListing, termsParams{Price: price, TokenSize: tokenSize},
		accts.metas(true),
		auctionhouse.SellAccounts(accts.AuctionHouse, accts.Seller, accts.Mint, price, tokenSize))
}

// NewUpdateListingInstruction builds update_listing for the stored listing.
func NewUpdateListingInstruction(accts ListingAccounts, listing *Listing, newPrice uint64) (types.Instruction, error) {
	return instruction(ixUpdateListing, updateListingParams{NewPrice: newPrice},
		accts.metas(false),
		auctionhouse.SellAccounts(accts.AuctionHouse, accts.Seller, accts.Mint, listing.Price, listing.TokenSize),
		auctionhouse.SellAccounts(accts.AuctionHouse, accts.Seller, accts.Mint, newPrice, listing.TokenSize))
}

// NewCloseListingInstruction builds close_listing for the stored listing.
func NewCloseListingInstruction(accts ListingAccounts, listing *Listing) (types.Instruction, error) {
	return instruction(ixCloseListing, nil,
		accts.metas(true),
		auctionhouse.SellAccounts(accts.AuctionHouse, accts.Seller, accts.Mint, listing.Price, listing.TokenSize))
}

// NewCreateOfferInstruction builds create_offer; treasuryMint is the auction
// house's payment mint.
func NewCreateOfferInstruction(accts OfferAccounts, treasuryMint crypto.Address, price, tokenSize uint64) (types.Instruction, error) {
	return instruction(ixCreateOffer, termsParams{Price: price, TokenSize: tokenSize},
		accts.metas(),
		auctionhouse.BidAccounts(accts.AuctionHouse, treasuryMint, accts.Buyer, accts.Mint, price, tokenSize))
}

// NewCloseOfferInstruction builds close_offer for the stored offer.
func NewCloseOfferInstruction(accts OfferAccounts, treasuryMint crypto.Address, offer *Offer) (types.Instruction, error) {
	return instruction(ixCloseOffer, nil,
		accts.metas(),
		auctionhouse.BidAccounts(accts.AuctionHouse, treasuryMint, accts.Buyer, accts.Mint, offer.Price, offer.TokenSize))
}

func rewardAccounts(center *RewardCenter, buyer, seller crypto.Address) []types.AccountMeta {
	buyerReward, _ := token.FindAssociatedTokenAddress(buyer, center.TokenMint)
	sellerReward, _ := token.FindAssociatedTokenAddress(seller, center.TokenMint)
	return []types.AccountMeta{
		types.Writable(center.Treasury, false),
		types.Writable(buyerReward, false),
		types.Writable(sellerReward, false),
	}
}

// NewBuyListingInstruction builds buy_listing against the stored listing.
// house and center are the records the listing trades under.
func NewBuyListingInstruction(buyer crypto.Address, accts ListingAccounts, listing *Listing, house *auctionhouse.AuctionHouse, center *RewardCenter) (types.Instruction, error) {
	named := []types.AccountMeta{
		types.ReadOnly(buyer, true),
		types.ReadOnly(accts.Seller, false),
		types.ReadOnly(accts.AuctionHouse, false),
		types.ReadOnly(accts.RewardCenter, false),
		types.ReadOnly(accts.Mint, false),
		types.ReadOnly(accts.Metadata, false),
		types.Writable(accts.Listing, false),
		types.Writable(accts.Cursor, false),
		types.ReadOnly(center.Treasury, false),
	}
	return instruction(ixBuyListing, termsParams{Price: listing.Price, TokenSize: listing.TokenSize},
		named,
		rewardAccounts(center, buyer, accts.Seller),
		auctionhouse.BidAccounts(accts.AuctionHouse, house.TreasuryMint, buyer, accts.Mint, listing.Price, listing.TokenSize),
		auctionhouse.ExecuteSaleAccounts(accts.AuctionHouse, house, accts.Seller, buyer, accts.Mint, listing.Price, listing.TokenSize))
}

// NewAcceptOfferInstruction builds accept_offer settling the seller's listing
// against the buyer's offer.
func NewAcceptOfferInstruction(listingAccts ListingAccounts, offerAccts OfferAccounts, offer *Offer, house *auctionhouse.AuctionHouse, center *RewardCenter) (types.Instruction, error) {
	named := []types.AccountMeta{
		types.ReadOnly(listingAccts.Seller, true),
		types.ReadOnly(offerAccts.Buyer, false),
		types.ReadOnly(listingAccts.AuctionHouse, false),
		types.ReadOnly(listingAccts.RewardCenter, false),
		types.ReadOnly(listingAccts.Mint, false),
		types.ReadOnly(listingAccts.Metadata, false),
		types.Writable(listingAccts.Listing, false),
		types.Writable(listingAccts.Cursor, false),
		types.Writable(offerAccts.Offer, false),
		types.Writable(offerAccts.Cursor, false),
		types.ReadOnly(center.Treasury, false),
	}
	return instruction(ixAcceptOffer, termsParams{Price: offer.Price, TokenSize: offer.TokenSize},
		named,
		rewardAccounts(center, offerAccts.Buyer, listingAccts.Seller),
		auctionhouse.ExecuteSaleAccounts(listingAccts.AuctionHouse, house, listingAccts.Seller, offerAccts.Buyer, listingAccts.Mint, offer.Price, offer.TokenSize))
}
