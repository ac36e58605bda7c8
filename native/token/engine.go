package token

import (
	"fmt"
	"math"
	"strconv"

	"rewardcenter/core/events"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
)

const (
	EventTypeMintInitialized    = "token.mint.initialized"
	EventTypeAccountInitialized = "token.account.initialized"
	EventTypeMinted             = "token.minted"
	EventTypeTransferred        = "token.transferred"
)

// State is the storage the token program needs.
type State interface {
	TokenMintGet(addr crypto.Address) (*Mint, bool, error)
	TokenMintPut(addr crypto.Address, mint *Mint) error
	TokenAccountGet(addr crypto.Address) (*Account, bool, error)
	TokenAccountPut(addr crypto.Address, account *Account) error
}

// Engine implements mints, associated token accounts and transfers.
type Engine struct {
	state   State
	emitter events.Emitter
}

// NewEngine creates a token engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

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
	return nil
}

// InitializeMint creates a mint at addr. The signer must control addr (the
// mint key pair, or a program authority for derived mints).
func (e *Engine) InitializeMint(signer crypto.Signer, addr, authority crypto.Address, decimals uint8) error {
	if err := e.ready(); err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(addr) {
		return fmt.Errorf("%w: mint %s", ErrUnauthorized, addr)
	}
	if _, ok, err := e.state.TokenMintGet(addr); err != nil {
		return err
	} else if ok {
		return ErrMintExists
	}
	if err := e.state.TokenMintPut(addr, &Mint{Authority: authority, Decimals: decimals}); err != nil {
		return err
	}
	e.emit(EventTypeMintInitialized, map[string]string{
		"mint":      addr.String(),
		"authority": authority.String(),
		"decimals":  strconv.FormatUint(uint64(decimals), 10),
	})
	return nil
}

// Mint returns the mint stored at addr.
func (e *Engine) Mint(addr crypto.Address) (*Mint, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	mint, ok, err := e.state.TokenMintGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, addr)
	}
	return mint, nil
}

// EnsureAccount returns the associated token account of owner for mint,
// creating it with a zero balance when missing.
func (e *Engine) EnsureAccount(owner, mint crypto.Address) (crypto.Address, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, err
	}
	addr, _ := FindAssociatedTokenAddress(owner, mint)
	existing, ok, err := e.state.TokenAccountGet(addr)
	if err != nil {
		return crypto.Address{}, err
	}
	if ok {
		if existing.Mint != mint || existing.Owner != owner {
			return crypto.Address{}, ErrMintMismatch
		}
		return addr, nil
	}
	if _, err := e.Mint(mint); err != nil {
		return crypto.Address{}, err
	}
	if err := e.state.TokenAccountPut(addr, &Account{Mint: mint, Owner: owner}); err != nil {
		return crypto.Address{}, err
	}
	e.emit(EventTypeAccountInitialized, map[string]string{
		"account": addr.String(),
		"owner":   owner.String(),
		"mint":    mint.String(),
	})
	return addr, nil
}

// Account returns the token account stored at addr.
func (e *Engine) Account(addr crypto.Address) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	acc, ok, err := e.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc, nil
}

// Balance returns the amount held by the token account at addr. Missing
// accounts hold nothing.
func (e *Engine) Balance(addr crypto.Address) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	acc, ok, err := e.state.TokenAccountGet(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return acc.Amount, nil
}

// MintTo issues amount new tokens into dest. The signer must be the mint
// authority.
func (e *Engine) MintTo(signer crypto.Signer, mintAddr, dest crypto.Address, amount uint64) error {
	mint, err := e.Mint(mintAddr)
	if err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(mint.Authority) {
		return fmt.Errorf("%w: mint authority", ErrUnauthorized)
	}
	acc, err := e.Account(dest)
	if err != nil {
		return err
	}
	if acc.Mint != mintAddr {
		return ErrMintMismatch
	}
	if mint.Supply > math.MaxUint64-amount || acc.Amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	mint.Supply += amount
	acc.Amount += amount
	if err := e.state.TokenMintPut(mintAddr, mint); err != nil {
		return err
	}
	if err := e.state.TokenAccountPut(dest, acc); err != nil {
		return err
	}
	e.emit(EventTypeMinted, map[string]string{
		"mint":    mintAddr.String(),
		"account": dest.String(),
		"amount":  strconv.FormatUint(amount, 10),
	})
	return nil
}

// Transfer moves amount between two accounts of the same mint. The signer
// must authorize the source account's owner.
func (e *Engine) Transfer(signer crypto.Signer, src, dst crypto.Address, amount uint64) error {
	from, err := e.Account(src)
	if err != nil {
		return err
	}
	if signer == nil || !signer.Authorizes(from.Owner) {
		return fmt.Errorf("%w: owner of %s", ErrUnauthorized, src)
	}
	if amount == 0 {
		return nil
	}
	if src == dst {
		if from.Amount < amount {
			return ErrInsufficientFunds
		}
		return nil
	}
	to, err := e.Account(dst)
	if err != nil {
		return err
	}
	if from.Mint != to.Mint {
		return ErrMintMismatch
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, from.Amount, amount)
	}
	if to.Amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	from.Amount -= amount
	to.Amount += amount
	if err := e.state.TokenAccountPut(src, from); err != nil {
		return err
	}
	if err := e.state.TokenAccountPut(dst, to); err != nil {
		return err
	}
	e.emit(EventTypeTransferred, map[string]string{
		"mint":   from.Mint.String(),
		"from":   src.String(),
		"to":     dst.String(),
		"amount": strconv.FormatUint(amount, 10),
	})
	return nil
}
