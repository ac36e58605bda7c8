package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/rewardcenter"
	"rewardcenter/native/token"
	"rewardcenter/storage/trie"
)

var errNilTrie = errors.New("state: trie must not be nil")

// Manager reads and writes ledger records on top of the state trie. Every
// record lives under keccak256("acct:" || address). A Manager with a guard
// installed rejects writes to accounts the running instruction did not
// declare writable.
type Manager struct {
	trie  *trie.Trie
	guard *Guard
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// SetGuard installs the write guard for the next instruction.
func (m *Manager) SetGuard(g *Guard) { m.guard = g }

// ClearGuard removes the write guard.
func (m *Manager) ClearGuard() { m.guard = nil }

// Trie exposes the underlying trie.
func (m *Manager) Trie() *trie.Trie { return m.trie }

var (
	accountPrefix = []byte("acct:")
	txSeenPrefix  = []byte("tx-seen:")
)

func accountKey(addr crypto.Address) []byte {
	return crypto.Keccak256(accountPrefix, addr[:])
}

func kvKey(key []byte) []byte {
	return crypto.Keccak256(key)
}

// AccountData returns the raw record stored at addr, or nil when absent.
func (m *Manager) AccountData(addr crypto.Address) ([]byte, error) {
	if m == nil || m.trie == nil {
		return nil, errNilTrie
	}
	return m.trie.Get(accountKey(addr))
}

// SetAccountData replaces the raw record stored at addr.
func (m *Manager) SetAccountData(addr crypto.Address, data []byte) error {
	if err := m.guard.CheckWrite(addr); err != nil {
		return err
	}
	return m.trie.Update(accountKey(addr), data)
}

// DeleteAccount removes the record stored at addr.
func (m *Manager) DeleteAccount(addr crypto.Address) error {
	if err := m.guard.CheckWrite(addr); err != nil {
		return err
	}
	return m.trie.Delete(accountKey(addr))
}

func (m *Manager) getRecord(name string, addr crypto.Address, out interface{}) (bool, error) {
	data, err := m.AccountData(addr)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := DecodeRecord(name, data, out); err != nil {
		return false, fmt.Errorf("%s %s: %w", name, addr, err)
	}
	return true, nil
}

func (m *Manager) putRecord(name string, addr crypto.Address, value interface{}) error {
	if reflect.ValueOf(value).IsNil() {
		return fmt.Errorf("state: nil %s record", name)
	}
	encoded, err := EncodeRecord(name, value)
	if err != nil {
		return err
	}
	return m.SetAccountData(addr, encoded)
}

func (m *Manager) TokenMintGet(addr crypto.Address) (*token.Mint, bool, error) {
	out := new(token.Mint)
	ok, err := m.getRecord(RecordMint, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) TokenMintPut(addr crypto.Address, mint *token.Mint) error {
	return m.putRecord(RecordMint, addr, mint)
}

func (m *Manager) TokenAccountGet(addr crypto.Address) (*token.Account, bool, error) {
	out := new(token.Account)
	ok, err := m.getRecord(RecordTokenAccount, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) TokenAccountPut(addr crypto.Address, acc *token.Account) error {
	return m.putRecord(RecordTokenAccount, addr, acc)
}

func (m *Manager) AuctionHouseGet(addr crypto.Address) (*auctionhouse.AuctionHouse, bool, error) {
	out := new(auctionhouse.AuctionHouse)
	ok, err := m.getRecord(RecordAuctionHouse, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) AuctionHousePut(addr crypto.Address, house *auctionhouse.AuctionHouse) error {
	return m.putRecord(RecordAuctionHouse, addr, house)
}

func (m *Manager) TradeStateGet(addr crypto.Address) (*auctionhouse.TradeState, bool, error) {
	out := new(auctionhouse.TradeState)
	ok, err := m.getRecord(RecordTradeState, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) TradeStatePut(addr crypto.Address, ts *auctionhouse.TradeState) error {
	return m.putRecord(RecordTradeState, addr, ts)
}

// TradeStateDelete removes a trade state once its escrow is released or
// settled.
func (m *Manager) TradeStateDelete(addr crypto.Address) error {
	return m.DeleteAccount(addr)
}

func (m *Manager) RewardCenterGet(addr crypto.Address) (*rewardcenter.RewardCenter, bool, error) {
	out := new(rewardcenter.RewardCenter)
	ok, err := m.getRecord(RecordRewardCenter, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) RewardCenterPut(addr crypto.Address, center *rewardcenter.RewardCenter) error {
	return m.putRecord(RecordRewardCenter, addr, center)
}

func (m *Manager) ListingGet(addr crypto.Address) (*rewardcenter.Listing, bool, error) {
	out := new(rewardcenter.Listing)
	ok, err := m.getRecord(RecordListing, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) ListingPut(addr crypto.Address, listing *rewardcenter.Listing) error {
	return m.putRecord(RecordListing, addr, listing)
}

func (m *Manager) OfferGet(addr crypto.Address) (*rewardcenter.Offer, bool, error) {
	out := new(rewardcenter.Offer)
	ok, err := m.getRecord(RecordOffer, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) OfferPut(addr crypto.Address, offer *rewardcenter.Offer) error {
	return m.putRecord(RecordOffer, addr, offer)
}

func (m *Manager) CursorGet(addr crypto.Address) (*rewardcenter.Cursor, bool, error) {
	out := new(rewardcenter.Cursor)
	ok, err := m.getRecord(RecordCursor, addr, out)
	if !ok || err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *Manager) CursorPut(addr crypto.Address, cursor *rewardcenter.Cursor) error {
	return m.putRecord(RecordCursor, addr, cursor)
}

// DecodeAccount decodes the raw record at addr into its typed form. It
// returns the record name alongside the value.
func DecodeAccount(data []byte) (string, interface{}, error) {
	name, ok := RecordName(data)
	if !ok {
		return "", nil, ErrDiscriminatorMismatch
	}
	var out interface{}
	switch name {
	case RecordMint:
		out = new(token.Mint)
	case RecordTokenAccount:
		out = new(token.Account)
	case RecordAuctionHouse:
		out = new(auctionhouse.AuctionHouse)
	case RecordTradeState:
		out = new(auctionhouse.TradeState)
	case RecordRewardCenter:
		out = new(rewardcenter.RewardCenter)
	case RecordListing:
		out = new(rewardcenter.Listing)
	case RecordOffer:
		out = new(rewardcenter.Offer)
	case RecordCursor:
		out = new(rewardcenter.Cursor)
	}
	if err := DecodeRecord(name, data, out); err != nil {
		return name, nil, err
	}
	return name, out, nil
}

// TxSeen reports whether a transaction hash already landed. Replay markers
// are runtime bookkeeping and bypass the write guard.
func (m *Manager) TxSeen(hash [32]byte) (bool, error) {
	data, err := m.trie.Get(kvKey(append(append([]byte(nil), txSeenPrefix...), hash[:]...)))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// MarkTxSeen records hash so the transaction cannot be applied again.
func (m *Manager) MarkTxSeen(hash [32]byte) error {
	return m.trie.Update(kvKey(append(append([]byte(nil), txSeenPrefix...), hash[:]...)), []byte{1})
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256 to match the requirements of
// the underlying trie implementation.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends value to the byte slice list stored under key. Duplicates
// are ignored.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}
