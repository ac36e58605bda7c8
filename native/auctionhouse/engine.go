package auctionhouse

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"rewardcenter/core/events"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/token"
)

const (
	EventTypeHouseCreated        = "auctionhouse.created"
	EventTypeAuctioneerDelegated = "auctionhouse.auctioneer.delegated"
	EventTypeSaleListed          = "auctionhouse.sale.listed"
	EventTypeSaleCanceled        = "auctionhouse.sale.canceled"
	EventTypeBidPlaced           = "auctionhouse.bid.placed"
	EventTypeBidCanceled         = "auctionhouse.bid.canceled"
	EventTypeSaleExecuted        = "auctionhouse.sale.executed"
	EventTypeTreasuryWithdrawn   = "auctionhouse.treasury.withdrawn"
)

// State is the storage the auction house needs.
type State interface {
	AuctionHouseGet(addr crypto.Address) (*AuctionHouse, bool, error)
	AuctionHousePut(addr crypto.Address, house *AuctionHouse) error
	TradeStateGet(addr crypto.Address) (*TradeState, bool, error)
	TradeStatePut(addr crypto.Address, ts *TradeState) error
	TradeStateDelete(addr crypto.Address) error
}

// Tokens is the subset of the token program used to move escrowed assets.
type Tokens interface {
	Mint(addr crypto.Address) (*token.Mint, error)
	EnsureAccount(owner, mint crypto.Address) (crypto.Address, error)
	Transfer(signer crypto.Signer, src, dst crypto.Address, amount uint64) error
}

// Engine holds NFTs and bid funds in program escrow and settles matching
// sell/bid pairs, charging the house's seller fee.
type Engine struct {
	state   State
	tokens  Tokens
	emitter events.Emitter
}

// NewEngine creates an auction house engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetTokens configures the token program used for escrow transfers.
func (e *Engine) SetTokens(tokens Tokens) { e.tokens = tokens }

// SetEmitter configures the event emitter. Nil resets to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evtType string, attrs map[string]string) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(&types.Event{Type: evtType, Attributes: attrs})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

// CreateAuctionHouseArgs configures a new house.
type CreateAuctionHouseArgs struct {
	Authority                     crypto.Address
	TreasuryMint                  crypto.Address
	TreasuryWithdrawalDestination crypto.Address
	SellerFeeBasisPoints          uint16
	RequiresSignOff               bool
	CanChangeSalePrice            bool
}

// CreateAuctionHouse initializes the house of args.Authority for the treasury
// mint together with its fee account.
func (e *Engine) CreateAuctionHouse(signer crypto.Signer, args CreateAuctionHouseArgs) (crypto.Address, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, err
	}
	if signer == nil || !signer.Authorizes(args.Authority) {
		return crypto.Address{}, fmt.Errorf("%w: house authority", ErrUnauthorized)
	}
	if args.SellerFeeBasisPoints > MaxBasisPoints {
		return crypto.Address{}, ErrInvalidFee
	}
	if _, err := e.tokens.Mint(args.TreasuryMint); err != nil {
		return crypto.Address{}, err
	}
	addr, bump := FindAuctionHouseAddress(args.Authority, args.TreasuryMint)
	if _, ok, err := e.state.AuctionHouseGet(addr); err != nil {
		return crypto.Address{}, err
	} else if ok {
		return crypto.Address{}, ErrHouseExists
	}
	treasury, err := e.tokens.EnsureAccount(addr, args.TreasuryMint)
	if err != nil {
		return crypto.Address{}, err
	}
	destination := args.TreasuryWithdrawalDestination
	if destination.IsZero() {
		destination = args.Authority
	}
	house := &AuctionHouse{
		Authority:                     args.Authority,
		TreasuryMint:                  args.TreasuryMint,
		Treasury:                      treasury,
		TreasuryWithdrawalDestination: destination,
		SellerFeeBasisPoints:          args.SellerFeeBasisPoints,
		RequiresSignOff:               args.RequiresSignOff,
		CanChangeSalePrice:            args.CanChangeSalePrice,
		Bump:                          bump,
	}
	if err := e.state.AuctionHousePut(addr, house); err != nil {
		return crypto.Address{}, err
	}
	e.emit(EventTypeHouseCreated, map[string]string{
		"auctionHouse":    addr.String(),
		"authority":       house.Authority.String(),
		"treasuryMint":    house.TreasuryMint.String(),
		"sellerFeeBps":    strconv.FormatUint(uint64(house.SellerFeeBasisPoints), 10),
		"requiresSignOff": strconv.FormatBool(house.RequiresSignOff),
	})
	return addr, nil
}

// House returns the auction house stored at addr.
func (e *Engine) House(addr crypto.Address) (*AuctionHouse, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	house, ok, err := e.state.AuctionHouseGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHouseNotFound, addr)
	}
	return house, nil
}

// TradeState returns the trade state stored at addr.
func (e *Engine) TradeState(addr crypto.Address) (*TradeState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ts, ok, err := e.state.TradeStateGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradeStateNotFound, addr)
	}
	return ts, nil
}

// DelegateAuctioneer hands trading authority over the house to auctioneer.
// Once delegated every sell, bid, cancel and execute must be authorized by
// the auctioneer as well as the trading wallet.
func (e *Engine) DelegateAuctioneer(signer crypto.Signer, houseAddr, auctioneer crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	house, err := e.House(houseAddr)
	if err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(house.Authority) {
		return fmt.Errorf("%w: house authority", ErrUnauthorized)
	}
	house.HasAuctioneer = true
	house.Auctioneer = auctioneer
	if err := e.state.AuctionHousePut(houseAddr, house); err != nil {
		return err
	}
	e.emit(EventTypeAuctioneerDelegated, map[string]string{
		"auctionHouse": houseAddr.String(),
		"auctioneer":   auctioneer.String(),
	})
	return nil
}

func (e *Engine) checkAuctioneer(signer crypto.Signer, house *AuctionHouse) error {
	if !house.HasAuctioneer {
		return nil
	}
	if signer == nil || !signer.Authorizes(house.Auctioneer) {
		return ErrAuctioneerRequired
	}
	return nil
}

func validateTerms(price, size uint64) error {
	if price == 0 {
		return ErrInvalidPrice
	}
	if size == 0 {
		return ErrInvalidTokenSize
	}
	return nil
}

// Sell moves TokenSize units of the NFT from the seller's token account into
// escrow and records the sell trade state.
func (e *Engine) Sell(signer crypto.Signer, args SellArgs) (EscrowHandle, error) {
	if err := e.ready(); err != nil {
		return EscrowHandle{}, err
	}
	if err := validateTerms(args.Price, args.TokenSize); err != nil {
		return EscrowHandle{}, err
	}
	house, err := e.House(args.AuctionHouse)
	if err != nil {
		return EscrowHandle{}, err
	}
	if signer == nil || !signer.Authorizes(args.Seller) {
		return EscrowHandle{}, fmt.Errorf("%w: seller", ErrUnauthorized)
	}
	if err := e.checkAuctioneer(signer, house); err != nil {
		return EscrowHandle{}, err
	}
	tsAddr, bump := FindTradeStateAddress(SideSell, args.Seller, args.AuctionHouse, args.Mint, args.Price, args.TokenSize)
	if _, ok, err := e.state.TradeStateGet(tsAddr); err != nil {
		return EscrowHandle{}, err
	} else if ok {
		return EscrowHandle{}, ErrTradeStateExists
	}
	source, _ := token.FindAssociatedTokenAddress(args.Seller, args.Mint)
	escrowOwner, _ := escrowAuthority(args.AuctionHouse, args.Seller)
	escrow, err := e.tokens.EnsureAccount(escrowOwner, args.Mint)
	if err != nil {
		return EscrowHandle{}, err
	}
	if err := e.tokens.Transfer(signer, source, escrow, args.TokenSize); err != nil {
		return EscrowHandle{}, err
	}
	ts := &TradeState{
		Side:         SideSell,
		AuctionHouse: args.AuctionHouse,
		Wallet:       args.Seller,
		Mint:         args.Mint,
		Price:        args.Price,
		TokenSize:    args.TokenSize,
		Bump:         bump,
	}
	if err := e.state.TradeStatePut(tsAddr, ts); err != nil {
		return EscrowHandle{}, err
	}
	e.emit(EventTypeSaleListed, tradeAttributes(tsAddr, ts))
	return EscrowHandle{AuctionHouse: args.AuctionHouse, TradeState: tsAddr}, nil
}

// Bid moves Price units of the treasury mint from the buyer into escrow and
// records the bid trade state.
func (e *Engine) Bid(signer crypto.Signer, args BidArgs) (EscrowHandle, error) {
	if err := e.ready(); err != nil {
		return EscrowHandle{}, err
	}
	if err := validateTerms(args.Price, args.TokenSize); err != nil {
		return EscrowHandle{}, err
	}
	house, err := e.House(args.AuctionHouse)
	if err != nil {
		return EscrowHandle{}, err
	}
	if signer == nil || !signer.Authorizes(args.Buyer) {
		return EscrowHandle{}, fmt.Errorf("%w: buyer", ErrUnauthorized)
	}
	if err := e.checkAuctioneer(signer, house); err != nil {
		return EscrowHandle{}, err
	}
	tsAddr, bump := FindTradeStateAddress(SideBid, args.Buyer, args.AuctionHouse, args.Mint, args.Price, args.TokenSize)
	if _, ok, err := e.state.TradeStateGet(tsAddr); err != nil {
		return EscrowHandle{}, err
	} else if ok {
		return EscrowHandle{}, ErrTradeStateExists
	}
	source, _ := token.FindAssociatedTokenAddress(args.Buyer, house.TreasuryMint)
	escrowOwner, _ := escrowAuthority(args.AuctionHouse, args.Buyer)
	escrow, err := e.tokens.EnsureAccount(escrowOwner, house.TreasuryMint)
	if err != nil {
		return EscrowHandle{}, err
	}
	if err := e.tokens.Transfer(signer, source, escrow, args.Price); err != nil {
		return EscrowHandle{}, err
	}
	ts := &TradeState{
		Side:         SideBid,
		AuctionHouse: args.AuctionHouse,
		Wallet:       args.Buyer,
		Mint:         args.Mint,
		Price:        args.Price,
		TokenSize:    args.TokenSize,
		Bump:         bump,
	}
	if err := e.state.TradeStatePut(tsAddr, ts); err != nil {
		return EscrowHandle{}, err
	}
	e.emit(EventTypeBidPlaced, tradeAttributes(tsAddr, ts))
	return EscrowHandle{AuctionHouse: args.AuctionHouse, TradeState: tsAddr}, nil
}

func (e *Engine) loadHandle(handle EscrowHandle, side Side) (*AuctionHouse, *TradeState, error) {
	house, err := e.House(handle.AuctionHouse)
	if err != nil {
		return nil, nil, err
	}
	ts, err := e.TradeState(handle.TradeState)
	if err != nil {
		return nil, nil, err
	}
	if ts.Side != side {
		return nil, nil, fmt.Errorf("%w: want %s, have %s", ErrWrongSide, side, ts.Side)
	}
	if ts.AuctionHouse != handle.AuctionHouse {
		return nil, nil, fmt.Errorf("%w: trade state house", ErrAddressMismatch)
	}
	return house, ts, nil
}

// CancelSale returns escrowed NFT units to the seller and removes the sell
// trade state.
func (e *Engine) CancelSale(signer crypto.Signer, handle EscrowHandle) error {
	if err := e.ready(); err != nil {
		return err
	}
	house, ts, err := e.loadHandle(handle, SideSell)
	if err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(ts.Wallet) {
		return fmt.Errorf("%w: seller", ErrUnauthorized)
	}
	if err := e.checkAuctioneer(signer, house); err != nil {
		return err
	}
	if err := e.release(handle.AuctionHouse, ts.Wallet, ts.Mint, ts.Wallet, ts.TokenSize); err != nil {
		return err
	}
	if err := e.state.TradeStateDelete(handle.TradeState); err != nil {
		return err
	}
	e.emit(EventTypeSaleCanceled, tradeAttributes(handle.TradeState, ts))
	return nil
}

// CancelBid refunds escrowed payment to the buyer and removes the bid trade
// state.
func (e *Engine) CancelBid(signer crypto.Signer, handle EscrowHandle) error {
	if err := e.ready(); err != nil {
		return err
	}
	house, ts, err := e.loadHandle(handle, SideBid)
	if err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(ts.Wallet) {
		return fmt.Errorf("%w: buyer", ErrUnauthorized)
	}
	if err := e.checkAuctioneer(signer, house); err != nil {
		return err
	}
	if err := e.release(handle.AuctionHouse, ts.Wallet, house.TreasuryMint, ts.Wallet, ts.Price); err != nil {
		return err
	}
	if err := e.state.TradeStateDelete(handle.TradeState); err != nil {
		return err
	}
	e.emit(EventTypeBidCanceled, tradeAttributes(handle.TradeState, ts))
	return nil
}

// release moves amount of mint out of wallet's escrow into recipient's
// associated token account, creating it when needed.
func (e *Engine) release(houseAddr, wallet, mint, recipient crypto.Address, amount uint64) error {
	escrowOwner, authority := escrowAuthority(houseAddr, wallet)
	escrow, _ := token.FindAssociatedTokenAddress(escrowOwner, mint)
	dest, err := e.tokens.EnsureAccount(recipient, mint)
	if err != nil {
		return err
	}
	return e.tokens.Transfer(authority, escrow, dest, amount)
}

// ExecuteSale settles a matching sell/bid pair: the NFT moves from the
// seller's escrow to the buyer, the escrowed payment minus the house fee
// moves to the seller and the fee moves to the house treasury. Both trade
// states are removed. Any failure leaves the caller to discard the
// transaction; no partial transfer is reported as success.
func (e *Engine) ExecuteSale(signer crypto.Signer, sell, bid EscrowHandle) (SettlementReceipt, error) {
	if err := e.ready(); err != nil {
		return SettlementReceipt{}, err
	}
	if sell.AuctionHouse != bid.AuctionHouse {
		return SettlementReceipt{}, fmt.Errorf("%w: auction house", ErrTradeMismatch)
	}
	house, sellTS, err := e.loadHandle(sell, SideSell)
	if err != nil {
		return SettlementReceipt{}, err
	}
	_, bidTS, err := e.loadHandle(bid, SideBid)
	if err != nil {
		return SettlementReceipt{}, err
	}
	if sellTS.Mint != bidTS.Mint {
		return SettlementReceipt{}, fmt.Errorf("%w: mint", ErrTradeMismatch)
	}
	if sellTS.TokenSize != bidTS.TokenSize {
		return SettlementReceipt{}, fmt.Errorf("%w: token size", ErrTradeMismatch)
	}
	if sellTS.Price != bidTS.Price {
		return SettlementReceipt{}, fmt.Errorf("%w: price %d != %d", ErrTradeMismatch, sellTS.Price, bidTS.Price)
	}
	if sellTS.Wallet == bidTS.Wallet {
		return SettlementReceipt{}, ErrSelfTrade
	}
	if err := e.checkAuctioneer(signer, house); err != nil {
		return SettlementReceipt{}, err
	}
	if house.RequiresSignOff && (signer == nil || !signer.Authorizes(house.Authority)) {
		return SettlementReceipt{}, fmt.Errorf("%w: house sign-off", ErrUnauthorized)
	}

	price := bidTS.Price
	fee := FeeFor(price, house.SellerFeeBasisPoints)
	if err := e.release(sell.AuctionHouse, sellTS.Wallet, sellTS.Mint, bidTS.Wallet, sellTS.TokenSize); err != nil {
		return SettlementReceipt{}, err
	}
	if err := e.release(bid.AuctionHouse, bidTS.Wallet, house.TreasuryMint, sellTS.Wallet, price-fee); err != nil {
		return SettlementReceipt{}, err
	}
	if fee > 0 {
		buyerEscrowOwner, authority := escrowAuthority(bid.AuctionHouse, bidTS.Wallet)
		buyerEscrow, _ := token.FindAssociatedTokenAddress(buyerEscrowOwner, house.TreasuryMint)
		if err := e.tokens.Transfer(authority, buyerEscrow, house.Treasury, fee); err != nil {
			return SettlementReceipt{}, err
		}
	}
	if err := e.state.TradeStateDelete(sell.TradeState); err != nil {
		return SettlementReceipt{}, err
	}
	if err := e.state.TradeStateDelete(bid.TradeState); err != nil {
		return SettlementReceipt{}, err
	}
	receipt := SettlementReceipt{
		AuctionHouse: sell.AuctionHouse,
		Seller:       sellTS.Wallet,
		Buyer:        bidTS.Wallet,
		Mint:         sellTS.Mint,
		TokenSize:    sellTS.TokenSize,
		PricePaid:    price,
		Fee:          fee,
	}
	e.emit(EventTypeSaleExecuted, map[string]string{
		"auctionHouse": receipt.AuctionHouse.String(),
		"seller":       receipt.Seller.String(),
		"buyer":        receipt.Buyer.String(),
		"mint":         receipt.Mint.String(),
		"tokenSize":    strconv.FormatUint(receipt.TokenSize, 10),
		"price":        strconv.FormatUint(receipt.PricePaid, 10),
		"fee":          strconv.FormatUint(receipt.Fee, 10),
	})
	return receipt, nil
}

// WithdrawFromTreasury moves collected fees to the house's withdrawal
// destination. Only the house authority may withdraw.
func (e *Engine) WithdrawFromTreasury(signer crypto.Signer, houseAddr crypto.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	house, err := e.House(houseAddr)
	if err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(house.Authority) {
		return fmt.Errorf("%w: house authority", ErrUnauthorized)
	}
	dest, err := e.tokens.EnsureAccount(house.TreasuryWithdrawalDestination, house.TreasuryMint)
	if err != nil {
		return err
	}
	if err := e.tokens.Transfer(houseAuthority(house), house.Treasury, dest, amount); err != nil {
		return err
	}
	e.emit(EventTypeTreasuryWithdrawn, map[string]string{
		"auctionHouse": houseAddr.String(),
		"destination":  dest.String(),
		"amount":       strconv.FormatUint(amount, 10),
	})
	return nil
}

// FeeFor returns price * bps / 10000 rounded down.
func FeeFor(price uint64, bps uint16) uint64 {
	if bps > MaxBasisPoints {
		bps = MaxBasisPoints
	}
	fee := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(uint64(bps)))
	fee.Div(fee, uint256.NewInt(MaxBasisPoints))
	return fee.Uint64()
}

func tradeAttributes(addr crypto.Address, ts *TradeState) map[string]string {
	return map[string]string{
		"tradeState":   addr.String(),
		"side":         ts.Side.String(),
		"auctionHouse": ts.AuctionHouse.String(),
		"wallet":       ts.Wallet.String(),
		"mint":         ts.Mint.String(),
		"price":        strconv.FormatUint(ts.Price, 10),
		"tokenSize":    strconv.FormatUint(ts.TokenSize, 10),
	}
}
