package rewardcenter

import (
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
)

// ListingAccounts lists the addresses a listing operation acts on. Listing is
// the record at the cursor's current generation for create, and the existing
// record for update and close.
type ListingAccounts struct {
	Seller       crypto.Address
	AuctionHouse crypto.Address
	RewardCenter crypto.Address
	Mint         crypto.Address
	Metadata     crypto.Address
	Listing      crypto.Address
	Cursor       crypto.Address
}

func (a ListingAccounts) verifyCursor() error {
	expected, _ := FindListingCursorAddress(a.Seller, a.Metadata, a.RewardCenter)
	if expected != a.Cursor {
		return newError(KindAddressMismatch, "listing cursor %s", a.Cursor)
	}
	return nil
}

// CreateListing escrows the NFT with the auction house and records an Active
// listing. At most one listing per (center, seller, metadata) is active.
func (e *Engine) CreateListing(signer crypto.Signer, accts ListingAccounts, price, tokenSize uint64) error {
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
	if err := requireSigner(signer, accts.Seller, "seller"); err != nil {
		return err
	}
	cursor, err := e.loadCursor(accts.Cursor)
	if err != nil {
		return err
	}
	if cursor.Active {
		return newError(KindStateConflict, "seller %s already has an active listing for %s", accts.Seller, accts.Metadata)
	}
	listingAddr, bump := FindListingAddress(accts.Seller, accts.Metadata, accts.RewardCenter, cursor.Generation)
	if listingAddr != accts.Listing {
		return newError(KindAddressMismatch, "listing %s, expected %s", accts.Listing, listingAddr)
	}
	if _, ok, err := e.state.ListingGet(listingAddr); err != nil {
		return err
	} else if ok {
		return newError(KindStateConflict, "listing %s already exists", listingAddr)
	}
	handle, err := e.house.Sell(adapterSigner(signer, center), auctionhouse.SellArgs{
		AuctionHouse: accts.AuctionHouse,
		Seller:       accts.Seller,
		Mint:         accts.Mint,
		Price:        price,
		TokenSize:    tokenSize,
	})
	if err != nil {
		return adapterError("sell", err)
	}
	now := e.now()
	listing := &Listing{
		RewardCenter: accts.RewardCenter,
		Seller:       accts.Seller,
		Metadata:     accts.Metadata,
		Mint:         accts.Mint,
		Price:        price,
		TokenSize:    tokenSize,
		State:        ListingActive,
		TradeState:   handle.TradeState,
		Generation:   cursor.Generation,
		CreatedAt:    now,
		UpdatedAt:    now,
		Bump:         bump,
	}
	if err := e.state.ListingPut(listingAddr, listing); err != nil {
		return err
	}
	if err := e.state.CursorPut(accts.Cursor, &Cursor{Generation: cursor.Generation + 1, Active: true}); err != nil {
		return err
	}
	e.emit(EventTypeListingCreated, listingAttributes(listingAddr, listing))
	return nil
}

// loadListing verifies the listing record against the supplied accounts.
func (e *Engine) loadListing(accts ListingAccounts) (*RewardCenter, *Listing, error) {
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
	listing, ok, err := e.state.ListingGet(accts.Listing)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, newError(KindAddressMismatch, "listing %s not found", accts.Listing)
	}
	expected, _ := FindListingAddress(listing.Seller, listing.Metadata, listing.RewardCenter, listing.Generation)
	if expected != accts.Listing || listing.Seller != accts.Seller || listing.Metadata != accts.Metadata || listing.RewardCenter != accts.RewardCenter {
		return nil, nil, newError(KindAddressMismatch, "listing %s does not match seller, metadata and reward center", accts.Listing)
	}
	return center, listing, nil
}

// closeCursor clears the active flag once the cursor's latest record leaves
// the Active state.
func (e *Engine) closeCursor(addr crypto.Address, generation uint64) error {
	cursor, err := e.loadCursor(addr)
	if err != nil {
		return err
	}
	if cursor.Generation != generation+1 {
		return nil
	}
	cursor.Active = false
	return e.state.CursorPut(addr, cursor)
}

// UpdateListing changes the asking price of an Active listing. The escrowed
// sale is re-issued at the new price so the auction house and the listing
// always agree.
func (e *Engine) UpdateListing(signer crypto.Signer, accts ListingAccounts, newPrice uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, listing, err := e.loadListing(accts)
	if err != nil {
		return err
	}
	if err := requireSigner(signer, accts.Seller, "seller"); err != nil {
		return err
	}
	if listing.State != ListingActive {
		return newError(KindStateConflict, "listing %s is %s", accts.Listing, listing.State)
	}
	auth := adapterSigner(signer, center)
	if err := e.house.CancelSale(auth, auctionhouse.EscrowHandle{AuctionHouse: accts.AuctionHouse, TradeState: listing.TradeState}); err != nil {
		return adapterError("cancel sale", err)
	}
	handle, err := e.house.Sell(auth, auctionhouse.SellArgs{
		AuctionHouse: accts.AuctionHouse,
		Seller:       listing.Seller,
		Mint:         listing.Mint,
		Price:        newPrice,
		TokenSize:    listing.TokenSize,
	})
	if err != nil {
		return adapterError("sell", err)
	}
	previous := listing.Price
	listing.Price = newPrice
	listing.TradeState = handle.TradeState
	listing.UpdatedAt = e.now()
	if err := e.state.ListingPut(accts.Listing, listing); err != nil {
		return err
	}
	attrs := listingAttributes(accts.Listing, listing)
	attrs["previousPrice"] = u64(previous)
	e.emit(EventTypeListingUpdated, attrs)
	return nil
}

// CloseListing returns the escrowed NFT to the seller and cancels the
// listing.
func (e *Engine) CloseListing(signer crypto.Signer, accts ListingAccounts) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, listing, err := e.loadListing(accts)
	if err != nil {
		return err
	}
	if err := requireSigner(signer, accts.Seller, "seller"); err != nil {
		return err
	}
	if listing.State != ListingActive {
		return newError(KindStateConflict, "listing %s is %s", accts.Listing, listing.State)
	}
	if err := e.house.CancelSale(adapterSigner(signer, center), auctionhouse.EscrowHandle{AuctionHouse: accts.AuctionHouse, TradeState: listing.TradeState}); err != nil {
		return adapterError("cancel sale", err)
	}
	listing.State = ListingCanceled
	listing.ClosedAt = e.now()
	if err := e.state.ListingPut(accts.Listing, listing); err != nil {
		return err
	}
	if err := e.closeCursor(accts.Cursor, listing.Generation); err != nil {
		return err
	}
	e.emit(EventTypeListingClosed, listingAttributes(accts.Listing, listing))
	return nil
}
