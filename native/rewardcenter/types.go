package rewardcenter

import (
	"fmt"

	"rewardcenter/crypto"
)

// ProgramID identifies the reward center program.
var ProgramID = crypto.ProgramAddress("reward_center")

// RewardCenter binds one auction house to one reward mint and its payout
// rules. Treasury is the reward token account owned by the center address.
type RewardCenter struct {
	AuctionHouse crypto.Address `json:"auctionHouse"`
	TokenMint    crypto.Address `json:"tokenMint"`
	Authority    crypto.Address `json:"authority"`
	Rules        RewardRules    `json:"rewardRules"`
	Treasury     crypto.Address `json:"treasury"`
	Bump         uint8          `json:"bump"`
}

// Clone returns a copy of the reward center.
func (c *RewardCenter) Clone() *RewardCenter {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ListingState is the lifecycle state of a listing.
type ListingState uint8

const (
	ListingActive ListingState = iota + 1
	ListingSold
	ListingCanceled
)

func (s ListingState) String() string {
	switch s {
	case ListingActive:
		return "active"
	case ListingSold:
		return "sold"
	case ListingCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("ListingState(%d)", uint8(s))
	}
}

// MarshalText renders the state name.
func (s ListingState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Listing is a seller's ask. TradeState references the auction house escrow
// holding the NFT while the listing is active.
type Listing struct {
	RewardCenter crypto.Address `json:"rewardCenter"`
	Seller       crypto.Address `json:"seller"`
	Metadata     crypto.Address `json:"metadata"`
	Mint         crypto.Address `json:"mint"`
	Price        uint64         `json:"price"`
	TokenSize    uint64         `json:"tokenSize"`
	State        ListingState   `json:"state"`
	TradeState   crypto.Address `json:"tradeState"`
	Generation   uint64         `json:"generation"`
	CreatedAt    uint64         `json:"createdAt"`
	UpdatedAt    uint64         `json:"updatedAt"`
	ClosedAt     uint64         `json:"closedAt"`
	Bump         uint8          `json:"bump"`
}

// Clone returns a copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// OfferState is the lifecycle state of an offer.
type OfferState uint8

const (
	OfferActive OfferState = iota + 1
	OfferAccepted
	OfferCanceled
)

func (s OfferState) String() string {
	switch s {
	case OfferActive:
		return "active"
	case OfferAccepted:
		return "accepted"
	case OfferCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("OfferState(%d)", uint8(s))
	}
}

// MarshalText renders the state name.
func (s OfferState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Offer is a buyer's bid. TradeState references the escrowed bid funds.
type Offer struct {
	RewardCenter crypto.Address `json:"rewardCenter"`
	Buyer        crypto.Address `json:"buyer"`
	Metadata     crypto.Address `json:"metadata"`
	Mint         crypto.Address `json:"mint"`
	Price        uint64         `json:"price"`
	TokenSize    uint64         `json:"tokenSize"`
	State        OfferState     `json:"state"`
	TradeState   crypto.Address `json:"tradeState"`
	Generation   uint64         `json:"generation"`
	CreatedAt    uint64         `json:"createdAt"`
	ClosedAt     uint64         `json:"closedAt"`
	Bump         uint8          `json:"bump"`
}

// Clone returns a copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// Cursor tracks the listings (or offers) of one wallet for one NFT under a
// center. Generation counts records ever created; Active is set while the
// latest one is active.
type Cursor struct {
	Generation uint64 `json:"generation"`
	Active     bool   `json:"active"`
}

// Clone returns a copy of the cursor.
func (c *Cursor) Clone() *Cursor {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
