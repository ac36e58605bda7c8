package rewardcenter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"rewardcenter/core/events"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/token"
)

// State is the record storage used by the reward center.
type State interface {
	RewardCenterGet(addr crypto.Address) (*RewardCenter, bool, error)
	RewardCenterPut(addr crypto.Address, center *RewardCenter) error
	ListingGet(addr crypto.Address) (*Listing, bool, error)
	ListingPut(addr crypto.Address, listing *Listing) error
	OfferGet(addr crypto.Address) (*Offer, bool, error)
	OfferPut(addr crypto.Address, offer *Offer) error
	CursorGet(addr crypto.Address) (*Cursor, bool, error)
	CursorPut(addr crypto.Address, cursor *Cursor) error
}

// AuctionHouse is the escrow and settlement capability the reward center
// orchestrates. *auctionhouse.Engine satisfies it.
type AuctionHouse interface {
	House(addr crypto.Address) (*auctionhouse.AuctionHouse, error)
	DelegateAuctioneer(signer crypto.Signer, house, auctioneer crypto.Address) error
	Sell(signer crypto.Signer, args auctionhouse.SellArgs) (auctionhouse.EscrowHandle, error)
	CancelSale(signer crypto.Signer, handle auctionhouse.EscrowHandle) error
	Bid(signer crypto.Signer, args auctionhouse.BidArgs) (auctionhouse.EscrowHandle, error)
	CancelBid(signer crypto.Signer, handle auctionhouse.EscrowHandle) error
	ExecuteSale(signer crypto.Signer, sell, bid auctionhouse.EscrowHandle) (auctionhouse.SettlementReceipt, error)
}

// Tokens is the reward token capability: balances, account creation and
// authority-checked transfers.
type Tokens interface {
	Mint(addr crypto.Address) (*token.Mint, error)
	EnsureAccount(owner, mint crypto.Address) (crypto.Address, error)
	Transfer(signer crypto.Signer, src, dst crypto.Address, amount uint64) error
	Balance(addr crypto.Address) (uint64, error)
}

// Metrics receives settlement and payout observations.
type Metrics interface {
	ObserveSettlement(kind string, price uint64)
	ObserveRewardPayout(outcome string, buyer, seller uint64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSettlement(string, uint64)           {}
func (noopMetrics) ObserveRewardPayout(string, uint64, uint64) {}

// Engine runs the reward center lifecycles and the settlement orchestrator.
// Every operation validates its inputs before touching state; partial effects
// of a failed operation are discarded by the host transaction.
type Engine struct {
	state   State
	house   AuctionHouse
	tokens  Tokens
	emitter events.Emitter
	metrics Metrics
	logger  *slog.Logger
	nowFn   func() int64
	reserve uint64
}

// NewEngine creates a reward center engine with no-op emitter and metrics.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		metrics: noopMetrics{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetAuctionHouse configures the auction house adapter.
func (e *Engine) SetAuctionHouse(house AuctionHouse) { e.house = house }

// SetTokens configures the reward token program.
func (e *Engine) SetTokens(tokens Tokens) { e.tokens = tokens }

// SetEmitter configures the event emitter. Nil resets to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics configures the metrics sink. Nil resets to a no-op sink.
func (e *Engine) SetMetrics(metrics Metrics) {
	if metrics == nil {
		e.metrics = noopMetrics{}
		return
	}
	e.metrics = metrics
}

// SetLogger configures the engine logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e.logger = logger
}

// SetNowFunc overrides the clock used for record timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetTreasuryReserve keeps reserve units in every treasury: withdrawals and
// reward payouts may only spend the balance above it.
func (e *Engine) SetTreasuryReserve(reserve uint64) { e.reserve = reserve }

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
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
	if e.house == nil {
		return errNilAdapter
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

// loadCenter verifies that centerAddr is the center derived for house and
// returns it.
func (e *Engine) loadCenter(house, centerAddr crypto.Address) (*RewardCenter, error) {
	expected, _ := FindRewardCenterAddress(house)
	if expected != centerAddr {
		return nil, newError(KindAddressMismatch, "reward center %s is not derived from auction house %s", centerAddr, house)
	}
	center, ok, err := e.state.RewardCenterGet(centerAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(KindAddressMismatch, "reward center %s not initialized", centerAddr)
	}
	if center.AuctionHouse != house {
		return nil, newError(KindAddressMismatch, "reward center bound to %s", center.AuctionHouse)
	}
	return center, nil
}

func (e *Engine) loadCursor(addr crypto.Address) (*Cursor, error) {
	cursor, ok, err := e.state.CursorGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Cursor{}, nil
	}
	return cursor, nil
}

func checkMetadata(mint, metadata crypto.Address) error {
	expected, _ := token.FindMetadataAddress(mint)
	if expected != metadata {
		return newError(KindAddressMismatch, "metadata %s does not belong to mint %s", metadata, mint)
	}
	return nil
}

func requireSigner(signer crypto.Signer, addr crypto.Address, role string) error {
	if signer == nil || !signer.Authorizes(addr) {
		return newError(KindAuthorization, "%s %s must sign", role, addr)
	}
	return nil
}

// adapterSigner lets the adapter see both the transaction signers and the
// center acting as the house's auctioneer.
func adapterSigner(signer crypto.Signer, center *RewardCenter) crypto.Signer {
	return crypto.Signers{signer, centerAuthority(center.AuctionHouse, center.Bump)}
}

// disbursable is the treasury balance above the configured reserve.
func (e *Engine) disbursable(treasury crypto.Address) (uint64, error) {
	balance, err := e.tokens.Balance(treasury)
	if err != nil {
		return 0, err
	}
	if balance <= e.reserve {
		return 0, nil
	}
	return balance - e.reserve, nil
}

// tokenError classifies token program failures.
func tokenError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isAccessError(err):
		return wrapError(KindAddressMismatch, op, err)
	case errors.Is(err, token.ErrInsufficientFunds):
		return wrapError(KindInsufficientFunds, op, err)
	case errors.Is(err, token.ErrAccountNotFound), errors.Is(err, token.ErrMintMismatch), errors.Is(err, token.ErrMintNotFound):
		return wrapError(KindAddressMismatch, op, err)
	case errors.Is(err, token.ErrUnauthorized):
		return wrapError(KindAuthorization, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
