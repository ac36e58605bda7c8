package token

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"rewardcenter/core/events"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
)

type mockState struct {
	mints    map[crypto.Address]*Mint
	accounts map[crypto.Address]*Account
}

func newMockState() *mockState {
	return &mockState{
		mints:    make(map[crypto.Address]*Mint),
		accounts: make(map[crypto.Address]*Account),
	}
}

func (m *mockState) TokenMintGet(addr crypto.Address) (*Mint, bool, error) {
	mint, ok := m.mints[addr]
	if !ok {
		return nil, false, nil
	}
	return mint.Clone(), true, nil
}

func (m *mockState) TokenMintPut(addr crypto.Address, mint *Mint) error {
	m.mints[addr] = mint.Clone()
	return nil
}

func (m *mockState) TokenAccountGet(addr crypto.Address) (*Account, bool, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acc.Clone(), true, nil
}

func (m *mockState) TokenAccountPut(addr crypto.Address, acc *Account) error {
	m.accounts[addr] = acc.Clone()
	return nil
}

type recorder struct {
	events []string
}

func (r *recorder) Emit(evt events.Event) {
	r.events = append(r.events, evt.EventType())
}

func newTestAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	st := newMockState()
	engine := NewEngine()
	engine.SetState(st)
	return engine, st
}

func TestInitializeMintRequiresMintSignature(t *testing.T) {
	engine, _ := newTestEngine(t)
	mint := newTestAddress(0x01)
	authority := newTestAddress(0x02)

	if err := engine.InitializeMint(crypto.NewSignerSet(authority), mint, authority, 9); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.InitializeMint(crypto.NewSignerSet(mint), mint, authority, 9); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.InitializeMint(crypto.NewSignerSet(mint), mint, authority, 9); !errors.Is(err, ErrMintExists) {
		t.Fatalf("expected mint exists, got %v", err)
	}
	stored, err := engine.Mint(mint)
	if err != nil {
		t.Fatalf("mint lookup: %v", err)
	}
	if stored.Authority != authority || stored.Decimals != 9 || stored.Supply != 0 {
		t.Fatalf("unexpected mint: %+v", stored)
	}
}

func TestMintToAndTransfer(t *testing.T) {
	engine, _ := newTestEngine(t)
	rec := &recorder{}
	engine.SetEmitter(rec)
	mint := newTestAddress(0x01)
	authority := newTestAddress(0x02)
	alice := newTestAddress(0x03)
	bob := newTestAddress(0x04)

	if err := engine.InitializeMint(crypto.NewSignerSet(mint), mint, authority, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	aliceAcc, err := engine.EnsureAccount(alice, mint)
	if err != nil {
		t.Fatalf("ensure alice: %v", err)
	}
	bobAcc, err := engine.EnsureAccount(bob, mint)
	if err != nil {
		t.Fatalf("ensure bob: %v", err)
	}
	again, err := engine.EnsureAccount(alice, mint)
	if err != nil || again != aliceAcc {
		t.Fatalf("ensure should be idempotent: %v %s", err, again)
	}

	if err := engine.MintTo(crypto.NewSignerSet(alice), mint, aliceAcc, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized mint, got %v", err)
	}
	if err := engine.MintTo(crypto.NewSignerSet(authority), mint, aliceAcc, 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(crypto.NewSignerSet(bob), aliceAcc, bobAcc, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized transfer, got %v", err)
	}
	if err := engine.Transfer(crypto.NewSignerSet(alice), aliceAcc, bobAcc, 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := engine.Transfer(crypto.NewSignerSet(alice), aliceAcc, bobAcc, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := engine.Balance(aliceAcc); bal != 60 {
		t.Fatalf("alice balance = %d, want 60", bal)
	}
	if bal, _ := engine.Balance(bobAcc); bal != 40 {
		t.Fatalf("bob balance = %d, want 40", bal)
	}
	stored, _ := engine.Mint(mint)
	if stored.Supply != 100 {
		t.Fatalf("supply = %d, want 100", stored.Supply)
	}
	want := []string{EventTypeMintInitialized, EventTypeAccountInitialized, EventTypeAccountInitialized, EventTypeMinted, EventTypeTransferred}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, rec.events[i], want[i])
		}
	}
}

func TestTransferRejectsMintMismatchAndOverflow(t *testing.T) {
	engine, st := newTestEngine(t)
	mintA := newTestAddress(0x01)
	mintB := newTestAddress(0x02)
	owner := newTestAddress(0x03)
	other := newTestAddress(0x04)
	for _, mint := range []crypto.Address{mintA, mintB} {
		if err := engine.InitializeMint(crypto.NewSignerSet(mint), mint, owner, 0); err != nil {
			t.Fatalf("initialize: %v", err)
		}
	}
	accA, _ := engine.EnsureAccount(owner, mintA)
	accB, _ := engine.EnsureAccount(other, mintB)
	otherA, _ := engine.EnsureAccount(other, mintA)
	if err := engine.MintTo(crypto.NewSignerSet(owner), mintA, accA, 5); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(crypto.NewSignerSet(owner), accA, accB, 1); !errors.Is(err, ErrMintMismatch) {
		t.Fatalf("expected mint mismatch, got %v", err)
	}
	st.accounts[otherA].Amount = math.MaxUint64
	if err := engine.Transfer(crypto.NewSignerSet(owner), accA, otherA, 1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestProcessTransferInstruction(t *testing.T) {
	engine, _ := newTestEngine(t)
	mint := newTestAddress(0x01)
	authority := newTestAddress(0x02)
	bob := newTestAddress(0x04)
	if err := engine.InitializeMint(crypto.NewSignerSet(mint), mint, authority, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	src, _ := engine.EnsureAccount(authority, mint)
	if err := engine.MintTo(crypto.NewSignerSet(authority), mint, src, 7); err != nil {
		t.Fatalf("mint: %v", err)
	}

	create, err := NewCreateAssociatedAccountInstruction(authority, bob, mint)
	if err != nil {
		t.Fatalf("build create: %v", err)
	}
	if err := engine.Process(&types.InvokeContext{Signers: crypto.NewSignerSet(authority), Accounts: create.Accounts, Data: create.Data}); err != nil {
		t.Fatalf("process create: %v", err)
	}
	dst, _ := FindAssociatedTokenAddress(bob, mint)
	ix, err := NewTransferInstruction(src, dst, authority, 3)
	if err != nil {
		t.Fatalf("build transfer: %v", err)
	}
	if err := engine.Process(&types.InvokeContext{Signers: crypto.NewSignerSet(authority), Accounts: ix.Accounts, Data: ix.Data}); err != nil {
		t.Fatalf("process transfer: %v", err)
	}
	if bal, _ := engine.Balance(dst); bal != 3 {
		t.Fatalf("balance = %d, want 3", bal)
	}
	if err := engine.Process(&types.InvokeContext{Data: []byte{0x01}}); !errors.Is(err, types.ErrShortInstructionData) {
		t.Fatalf("expected short data error, got %v", err)
	}
}
