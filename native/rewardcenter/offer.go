package rewardcenter

import (
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
)

// OfferAccounts lists the addresses an offer operation acts on.
type OfferAccounts struct {
	Buyer        crypto.Address
	AuctionHouse crypto.Address
	RewardCenter crypto.Address
	Mint         crypto.Address
	Metadata     crypto.Address
	Offer        crypto.Address
	Cursor       crypto.Address
}

func (a OfferAccounts) verifyCursor() error {
	expected, _ := FindOfferCursorAddress(a.Buyer, a.Metadata, a.RewardCenter)
	if expected != a.Cursor {
		return newError(KindAddressMismatch, "offer cursor %s", a.Cursor)
	}
	return nil
}

// CreateOffer escrows price payment tokens with the auction house and records
// an Active offer. Offers cannot be amended; close and recreate instead.
func (e *Engine) CreateOffer(signer crypto.Signer, accts OfferAccounts, price, tokenSize uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, err := e.loadCenter(accts.AuctionHouse, accts.RewardCenter)
	if err != nil {
		return err
	}
	if err := checkMetadata(accts.Mint, accts.Metadata); err != nil {
		return err
	}
	if err := accts.verifyCursor(); err != nil {
		return err
	}
	if err := requireSigner(signer, accts.Buyer, "buyer"); err != nil {
		return err
	}
	cursor, err := e.loadCursor(accts.Cursor)
	if err != nil {
		return err
	}
	if cursor.Active {
		return newError(KindStateConflict, "buyer %s already has an active offer for %s", accts.Buyer, accts.Metadata)
	}
	offerAddr, bump := FindOfferAddress(accts.Buyer, accts.Metadata, accts.RewardCenter, cursor.Generation)
	if offerAddr != accts.Offer {
		return newError(KindAddressMismatch, "offer %s, expected %s", accts.Offer, offerAddr)
	}
	if _, ok, err := e.state.OfferGet(offerAddr); err != nil {
		return err
	} else if ok {
		return newError(KindStateConflict, "offer %s already exists", offerAddr)
	}
	handle, err := e.house.Bid(adapterSigner(signer, center), auctionhouse.BidArgs{
		AuctionHouse: accts.AuctionHouse,
		Buyer:        accts.Buyer,
		Mint:         accts.Mint,
		Price:        price,
		TokenSize:    tokenSize,
	})
	if err != nil {
		return adapterError("bid", err)
	}
	offer := &Offer{
		RewardCenter: accts.RewardCenter,
		Buyer:        accts.Buyer,
		Metadata:     accts.Metadata,
		Mint:         accts.Mint,
		Price:        price,
		TokenSize:    tokenSize,
		State:        OfferActive,
		TradeState:   handle.TradeState,
		Generation:   cursor.Generation,
		CreatedAt:    e.now(),
		Bump:         bump,
	}
	if err := e.state.OfferPut(offerAddr, offer); err != nil {
		return err
	}
	if err := e.state.CursorPut(accts.Cursor, &Cursor{Generation: cursor.Generation + 1, Active: true}); err != nil {
		return err
	}
	e.emit(EventTypeOfferCreated, offerAttributes(offerAddr, offer))
	return nil
}

func (e *Engine) loadOffer(accts OfferAccounts) (*RewardCenter, *Offer, error) {
	center, err := e.loadCenter(accts.AuctionHouse, accts.RewardCenter)
	if err != nil {
		return nil, nil, err
	}
	if err := checkMetadata(accts.Mint, accts.Metadata); err != nil {
		return nil, nil, err
	}
	if err := accts.verifyCursor(); err != nil {
		return nil, nil, err
	}
	offer, ok, err := e.state.OfferGet(accts.Offer)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, newError(KindAddressMismatch, "offer %s not found", accts.Offer)
	}
	expected, _ := FindOfferAddress(offer.Buyer, offer.Metadata, offer.RewardCenter, offer.Generation)
	if expected != accts.Offer || offer.Buyer != accts.Buyer || offer.Metadata != accts.Metadata || offer.RewardCenter != accts.RewardCenter {
		return nil, nil, newError(KindAddressMismatch, "offer %s does not match buyer, metadata and reward center", accts.Offer)
	}
	return center, offer, nil
}

// CloseOffer refunds the escrowed bid to the buyer and cancels the offer.
func (e *Engine) CloseOffer(signer crypto.Signer, accts OfferAccounts) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, offer, err := e.loadOffer(accts)
	if err != nil {
		return err
	}
	if err := requireSigner(signer, accts.Buyer, "buyer"); err != nil {
		return err
	}
	if offer.State != OfferActive {
		return newError(KindStateConflict, "offer %s is %s", accts.Offer, offer.State)
	}
	if err := e.house.CancelBid(adapterSigner(signer, center), auctionhouse.EscrowHandle{AuctionHouse: accts.AuctionHouse, TradeState: offer.TradeState}); err != nil {
		return adapterError("cancel bid", err)
	}
	offer.State = OfferCanceled
	offer.ClosedAt = e.now()
	if err := e.state.OfferPut(accts.Offer, offer); err != nil {
		return err
	}
	if err := e.closeCursor(accts.Cursor, offer.Generation); err != nil {
		return err
	}
	e.emit(EventTypeOfferClosed, offerAttributes(accts.Offer, offer))
	return nil
}
