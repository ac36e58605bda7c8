package rewardcenter

import (
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
)

const (
	settlementBuyListing  = "buy_listing"
	settlementAcceptOffer = "accept_offer"

	payoutPaid    = "paid"
	payoutReduced = "reduced"
	payoutSkipped = "skipped"
)

// BuyListingAccounts lists the addresses buy_listing acts on.
type BuyListingAccounts struct {
	Buyer         crypto.Address
	Seller        crypto.Address
	AuctionHouse  crypto.Address
	RewardCenter  crypto.Address
	Mint          crypto.Address
	Metadata      crypto.Address
	Listing       crypto.Address
	ListingCursor crypto.Address
	Treasury      crypto.Address
}

func (a BuyListingAccounts) listingAccounts() ListingAccounts {
	return ListingAccounts{
		Seller:       a.Seller,
		AuctionHouse: a.AuctionHouse,
		RewardCenter: a.RewardCenter,
		Mint:         a.Mint,
		Metadata:     a.Metadata,
		Listing:      a.Listing,
		Cursor:       a.ListingCursor,
	}
}

// BuyListing buys an Active listing at its price: the buyer's payment is
// escrowed, the sale is executed by the auction house, the listing becomes
// Sold and rewards are paid from the treasury. The buyer-supplied price and
// size must equal the listing's.
func (e *Engine) BuyListing(signer crypto.Signer, accts BuyListingAccounts, price, tokenSize uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, listing, err := e.loadListing(accts.listingAccounts())
	if err != nil {
		return err
	}
	if center.Treasury != accts.Treasury {
		return newError(KindAddressMismatch, "treasury %s does not belong to reward center", accts.Treasury)
	}
	if err := requireSigner(signer, accts.Buyer, "buyer"); err != nil {
		return err
	}
	if listing.State != ListingActive {
		return newError(KindStateConflict, "listing %s is %s", accts.Listing, listing.State)
	}
	if listing.Price != price || listing.TokenSize != tokenSize {
		return newError(KindStateConflict, "listing terms are %d for %d, buyer offered %d for %d", listing.Price, listing.TokenSize, price, tokenSize)
	}
	if err := e.checkNoMatchingOffer(accts, listing); err != nil {
		return err
	}

	auth := adapterSigner(signer, center)
	bid, err := e.house.Bid(auth, auctionhouse.BidArgs{
		AuctionHouse: accts.AuctionHouse,
		Buyer:        accts.Buyer,
		Mint:         listing.Mint,
		Price:        listing.Price,
		TokenSize:    listing.TokenSize,
	})
	if err != nil {
		return adapterError("bid", err)
	}
	receipt, err := e.house.ExecuteSale(auth, auctionhouse.EscrowHandle{AuctionHouse: accts.AuctionHouse, TradeState: listing.TradeState}, bid)
	if err != nil {
		return adapterError("execute sale", err)
	}

	listing.State = ListingSold
	listing.ClosedAt = e.now()
	if err := e.state.ListingPut(accts.Listing, listing); err != nil {
		return err
	}
	if err := e.closeCursor(accts.ListingCursor, listing.Generation); err != nil {
		return err
	}
	attrs := listingAttributes(accts.Listing, listing)
	attrs["buyer"] = accts.Buyer.String()
	attrs["fee"] = u64(receipt.Fee)
	e.emit(EventTypeListingSold, attrs)
	e.metrics.ObserveSettlement(settlementBuyListing, receipt.PricePaid)
	return e.payRewards(accts.RewardCenter, center, receipt)
}

// checkNoMatchingOffer rejects a purchase by a buyer whose Active offer on
// the same NFT carries the listing's terms. That offer already holds the bid
// escrow a purchase would create.
func (e *Engine) checkNoMatchingOffer(accts BuyListingAccounts, listing *Listing) error {
	cursorAddr, _ := FindOfferCursorAddress(accts.Buyer, accts.Metadata, accts.RewardCenter)
	cursor, err := e.loadCursor(cursorAddr)
	if err != nil {
		return err
	}
	if !cursor.Active || cursor.Generation == 0 {
		return nil
	}
	offerAddr, _ := FindOfferAddress(accts.Buyer, accts.Metadata, accts.RewardCenter, cursor.Generation-1)
	offer, ok, err := e.state.OfferGet(offerAddr)
	if err != nil || !ok {
		return err
	}
	if offer.State == OfferActive && offer.Price == listing.Price && offer.TokenSize == listing.TokenSize {
		return newError(KindStateConflict, "buyer %s holds active offer %s at the listing's terms; close or accept the active offer", accts.Buyer, offerAddr)
	}
	return nil
}

// AcceptOfferAccounts lists the addresses accept_offer acts on.
type AcceptOfferAccounts struct {
	Seller        crypto.Address
	Buyer         crypto.Address
	AuctionHouse  crypto.Address
	RewardCenter  crypto.Address
	Mint          crypto.Address
	Metadata      crypto.Address
	Listing       crypto.Address
	ListingCursor crypto.Address
	Offer         crypto.Address
	OfferCursor   crypto.Address
	Treasury      crypto.Address
}

// AcceptOffer settles the seller's Active listing against the buyer's Active
// offer. Both must sit under the same center for the same NFT with equal
// price and size.
func (e *Engine) AcceptOffer(signer crypto.Signer, accts AcceptOfferAccounts, price, tokenSize uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, listing, err := e.loadListing(ListingAccounts{
		Seller:       accts.Seller,
		AuctionHouse: accts.AuctionHouse,
		RewardCenter: accts.RewardCenter,
		Mint:         accts.Mint,
		Metadata:     accts.Metadata,
		Listing:      accts.Listing,
		Cursor:       accts.ListingCursor,
	})
	if err != nil {
		return err
	}
	_, offer, err := e.loadOffer(OfferAccounts{
		Buyer:        accts.Buyer,
		AuctionHouse: accts.AuctionHouse,
		RewardCenter: accts.RewardCenter,
		Mint:         accts.Mint,
		Metadata:     accts.Metadata,
		Offer:        accts.Offer,
		Cursor:       accts.OfferCursor,
	})
	if err != nil {
		return err
	}
	if center.Treasury != accts.Treasury {
		return newError(KindAddressMismatch, "treasury %s does not belong to reward center", accts.Treasury)
	}
	if err := requireSigner(signer, accts.Seller, "seller"); err != nil {
		return err
	}
	if listing.State != ListingActive {
		return newError(KindStateConflict, "listing %s is %s", accts.Listing, listing.State)
	}
	if offer.State != OfferActive {
		return newError(KindStateConflict, "offer %s is %s", accts.Offer, offer.State)
	}
	if listing.Price != offer.Price || listing.TokenSize != offer.TokenSize {
		return newError(KindStateConflict, "listing terms %d for %d do not match offer %d for %d", listing.Price, listing.TokenSize, offer.Price, offer.TokenSize)
	}
	if price != offer.Price || tokenSize != offer.TokenSize {
		return newError(KindStateConflict, "accepted terms %d for %d do not match offer %d for %d", price, tokenSize, offer.Price, offer.TokenSize)
	}

	receipt, err := e.house.ExecuteSale(adapterSigner(signer, center),
		auctionhouse.EscrowHandle{AuctionHouse: accts.AuctionHouse, TradeState: listing.TradeState},
		auctionhouse.EscrowHandle{AuctionHouse: accts.AuctionHouse, TradeState: offer.TradeState})
	if err != nil {
		return adapterError("execute sale", err)
	}

	now := e.now()
	listing.State = ListingSold
	listing.ClosedAt = now
	offer.State = OfferAccepted
	offer.ClosedAt = now
	if err := e.state.ListingPut(accts.Listing, listing); err != nil {
		return err
	}
	if err := e.state.OfferPut(accts.Offer, offer); err != nil {
		return err
	}
	if err := e.closeCursor(accts.ListingCursor, listing.Generation); err != nil {
		return err
	}
	if err := e.closeCursor(accts.OfferCursor, offer.Generation); err != nil {
		return err
	}
	sold := listingAttributes(accts.Listing, listing)
	sold["buyer"] = accts.Buyer.String()
	sold["fee"] = u64(receipt.Fee)
	e.emit(EventTypeListingSold, sold)
	accepted := offerAttributes(accts.Offer, offer)
	accepted["listing"] = accts.Listing.String()
	accepted["seller"] = accts.Seller.String()
	e.emit(EventTypeOfferAccepted, accepted)
	e.metrics.ObserveSettlement(settlementAcceptOffer, receipt.PricePaid)
	return e.payRewards(accts.RewardCenter, center, receipt)
}

// payRewards disburses the computed rewards after a successful sale. A short
// treasury reduces both shares proportionally to what is disbursable, and an
// empty one pays nothing; neither case fails the sale.
func (e *Engine) payRewards(centerAddr crypto.Address, center *RewardCenter, receipt auctionhouse.SettlementReceipt) error {
	buyerReward, sellerReward := ComputeReward(receipt.PricePaid, center.Rules)
	total := buyerReward + sellerReward
	if total == 0 {
		return nil
	}
	available, err := e.disbursable(center.Treasury)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"rewardCenter":   centerAddr.String(),
		"buyer":          receipt.Buyer.String(),
		"seller":         receipt.Seller.String(),
		"price":          u64(receipt.PricePaid),
		"computedBuyer":  u64(buyerReward),
		"computedSeller": u64(sellerReward),
		"available":      u64(available),
	}
	outcome, evtType := payoutPaid, EventTypeRewardPaid
	if available < total {
		buyerReward = scale(buyerReward, available, total)
		sellerReward = scale(sellerReward, available, total)
		outcome, evtType = payoutReduced, EventTypeRewardReduced
	}
	if buyerReward+sellerReward == 0 {
		e.emit(EventTypeRewardSkipped, attrs)
		e.metrics.ObserveRewardPayout(payoutSkipped, 0, 0)
		e.logger.Warn("reward treasury cannot pay, skipping payout",
			"rewardCenter", centerAddr.String(),
			"computed", total,
			"available", available)
		return nil
	}
	if outcome == payoutReduced {
		e.logger.Warn("reward treasury short, reducing payout",
			"rewardCenter", centerAddr.String(),
			"computed", total,
			"available", available)
	}
	authority := centerAuthority(center.AuctionHouse, center.Bump)
	for _, payout := range []struct {
		wallet crypto.Address
		amount uint64
	}{
		{receipt.Buyer, buyerReward},
		{receipt.Seller, sellerReward},
	} {
		if payout.amount == 0 {
			continue
		}
		dest, err := e.tokens.EnsureAccount(payout.wallet, center.TokenMint)
		if err != nil {
			return tokenError("reward account", err)
		}
		if err := e.tokens.Transfer(authority, center.Treasury, dest, payout.amount); err != nil {
			return tokenError("reward payout", err)
		}
	}
	attrs["buyerReward"] = u64(buyerReward)
	attrs["sellerReward"] = u64(sellerReward)
	e.emit(evtType, attrs)
	e.metrics.ObserveRewardPayout(outcome, buyerReward, sellerReward)
	return nil
}
