package auctionhouse

import "errors"

var (
	ErrHouseExists        = errors.New("auctionhouse: auction house already exists")
	ErrHouseNotFound      = errors.New("auctionhouse: auction house not found")
	ErrTradeStateExists   = errors.New("auctionhouse: trade state already exists")
	ErrTradeStateNotFound = errors.New("auctionhouse: trade state not found")
	ErrUnauthorized       = errors.New("auctionhouse: missing required signature")
	ErrAuctioneerRequired = errors.New("auctionhouse: auctioneer authority required")
	ErrInvalidFee         = errors.New("auctionhouse: seller fee basis points exceed 10000")
	ErrInvalidPrice       = errors.New("auctionhouse: price must be positive")
	ErrInvalidTokenSize   = errors.New("auctionhouse: token size must be positive")
	ErrTradeMismatch      = errors.New("auctionhouse: sell and bid do not match")
	ErrSelfTrade          = errors.New("auctionhouse: buyer and seller are the same wallet")
	ErrWrongSide          = errors.New("auctionhouse: trade state is on the wrong side")
	ErrInvalidInstruction = errors.New("auctionhouse: invalid instruction")
	ErrAddressMismatch    = errors.New("auctionhouse: account does not match derived address")
	errNilState           = errors.New("auctionhouse: state not configured")
	errNilTokens          = errors.New("auctionhouse: token program not configured")
)
