package auctionhouse

import (
	"rewardcenter/crypto"
	"rewardcenter/native/token"
)

// ProgramID identifies the auction house program.
var ProgramID = crypto.ProgramAddress("auction_house")

// MaxBasisPoints bounds fee configuration.
const MaxBasisPoints = 10_000

// Side distinguishes the two kinds of trade state.
type Side uint8

const (
	SideSell Side = iota + 1
	SideBid
)

func (s Side) String() string {
	switch s {
	case SideSell:
		return "sell"
	case SideBid:
		return "bid"
	default:
		return "unknown"
	}
}

// AuctionHouse is a marketplace instance. Sale proceeds are paid in
// TreasuryMint; the seller fee lands in Treasury.
type AuctionHouse struct {
	Authority                     crypto.Address `json:"authority"`
	TreasuryMint                  crypto.Address `json:"treasuryMint"`
	Treasury                      crypto.Address `json:"treasury"`
	TreasuryWithdrawalDestination crypto.Address `json:"treasuryWithdrawalDestination"`
	SellerFeeBasisPoints          uint16         `json:"sellerFeeBasisPoints"`
	RequiresSignOff               bool           `json:"requiresSignOff"`
	CanChangeSalePrice            bool           `json:"canChangeSalePrice"`
	HasAuctioneer                 bool           `json:"hasAuctioneer"`
	Auctioneer                    crypto.Address `json:"auctioneer"`
	Bump                          uint8          `json:"bump"`
}

// Clone returns a copy of the auction house.
func (h *AuctionHouse) Clone() *AuctionHouse {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}

// TradeState records one side of a pending trade. Sell states reference NFT
// tokens held in the seller's escrow, bid states reference payment held in the
// buyer's escrow.
type TradeState struct {
	Side         Side           `json:"side"`
	AuctionHouse crypto.Address `json:"auctionHouse"`
	Wallet       crypto.Address `json:"wallet"`
	Mint         crypto.Address `json:"mint"`
	Price        uint64         `json:"price"`
	TokenSize    uint64         `json:"tokenSize"`
	Bump         uint8          `json:"bump"`
}

// Clone returns a copy of the trade state.
func (t *TradeState) Clone() *TradeState {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// EscrowHandle points at a live trade state.
type EscrowHandle struct {
	AuctionHouse crypto.Address
	TradeState   crypto.Address
}

// SellArgs describes a listing placed in escrow.
type SellArgs struct {
	AuctionHouse crypto.Address
	Seller       crypto.Address
	Mint         crypto.Address
	Price        uint64
	TokenSize    uint64
}

// BidArgs describes a bid whose funds are placed in escrow.
type BidArgs struct {
	AuctionHouse crypto.Address
	Buyer        crypto.Address
	Mint         crypto.Address
	Price        uint64
	TokenSize    uint64
}

// SettlementReceipt reports the outcome of ExecuteSale.
type SettlementReceipt struct {
	AuctionHouse crypto.Address
	Seller       crypto.Address
	Buyer        crypto.Address
	Mint         crypto.Address
	TokenSize    uint64
	PricePaid    uint64
	Fee          uint64
}

// FindAuctionHouseAddress derives the house owned by authority trading in
// treasuryMint.
func FindAuctionHouseAddress(authority, treasuryMint crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{[]byte("auction_house"), authority[:], treasuryMint[:]}, ProgramID)
}

// FindEscrowAddress derives the program-held escrow owner of wallet within
// house. Escrowed tokens sit in the associated token accounts of this address.
func FindEscrowAddress(house, wallet crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{[]byte("escrow"), house[:], wallet[:]}, ProgramID)
}

// FindTradeStateAddress derives the trade state for one side of a trade.
func FindTradeStateAddress(side Side, wallet, house, mint crypto.Address, price, size uint64) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{
		[]byte("trade_state"),
		{byte(side)},
		wallet[:],
		house[:],
		mint[:],
		crypto.Uint64Seed(price),
		crypto.Uint64Seed(size),
	}, ProgramID)
}

// FindTreasuryAddress returns the fee account of house.
func FindTreasuryAddress(house, treasuryMint crypto.Address) crypto.Address {
	addr, _ := token.FindAssociatedTokenAddress(house, treasuryMint)
	return addr
}

func escrowAuthority(house, wallet crypto.Address) (crypto.Address, crypto.Authority) {
	addr, bump := FindEscrowAddress(house, wallet)
	return addr, crypto.NewAuthority(ProgramID, bump, []byte("escrow"), house[:], wallet[:])
}

func houseAuthority(h *AuctionHouse) crypto.Authority {
	return crypto.NewAuthority(ProgramID, h.Bump, []byte("auction_house"), h.Authority[:], h.TreasuryMint[:])
}
