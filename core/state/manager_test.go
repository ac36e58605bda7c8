package state

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/rewardcenter"
	"rewardcenter/native/token"
	"rewardcenter/storage"
	"rewardcenter/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

func TestRecordRoundTrip(t *testing.T) {
	m := newTestManager(t)
	addr := testAddress(0x10)
	listing := &rewardcenter.Listing{
		RewardCenter: testAddress(0x01),
		Seller:       testAddress(0x02),
		Price:        1_000,
		TokenSize:    1,
		State:        rewardcenter.ListingActive,
		Generation:   3,
		CreatedAt:    42,
	}
	require.NoError(t, m.ListingPut(addr, listing))

	got, ok, err := m.ListingGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, listing, got)

	_, ok, err = m.OfferGet(testAddress(0x11))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordDiscriminatorIsChecked(t *testing.T) {
	m := newTestManager(t)
	addr := testAddress(0x20)
	require.NoError(t, m.TokenMintPut(addr, &token.Mint{Authority: testAddress(0x01), Decimals: 9}))

	if _, _, err := m.TokenAccountGet(addr); !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Fatalf("expected discriminator mismatch, got %v", err)
	}

	data, err := m.AccountData(addr)
	require.NoError(t, err)
	name, value, err := DecodeAccount(data)
	require.NoError(t, err)
	require.Equal(t, RecordMint, name)
	require.Equal(t, uint8(9), value.(*token.Mint).Decimals)

	data[discriminatorLength] = RecordVersion + 1
	require.NoError(t, m.SetAccountData(addr, data))
	if _, _, err := m.TokenMintGet(addr); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected unsupported version, got %v", err)
	}
}

func TestRewardCenterRecordKeepsRules(t *testing.T) {
	m := newTestManager(t)
	addr := testAddress(0x30)
	center := &rewardcenter.RewardCenter{
		AuctionHouse: testAddress(0x01),
		TokenMint:    testAddress(0x02),
		Rules: rewardcenter.RewardRules{
			Operand:                       rewardcenter.OperandMultiply,
			PayoutNumeral:                 2,
			SellerRewardPayoutBasisPoints: 2_500,
		},
		Bump: 254,
	}
	require.NoError(t, m.RewardCenterPut(addr, center))
	got, ok, err := m.RewardCenterGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, center, got)
}

func TestGuardRestrictsWrites(t *testing.T) {
	m := newTestManager(t)
	writable := testAddress(0x01)
	readOnly := testAddress(0x02)
	undeclared := testAddress(0x03)
	require.NoError(t, m.CursorPut(readOnly, &rewardcenter.Cursor{Generation: 1}))

	m.SetGuard(NewGuard([]types.AccountMeta{
		types.Writable(writable, false),
		types.ReadOnly(readOnly, false),
	}))
	require.NoError(t, m.CursorPut(writable, &rewardcenter.Cursor{Active: true}))
	if err := m.CursorPut(readOnly, &rewardcenter.Cursor{}); !errors.Is(err, types.ErrReadOnlyAccount) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if err := m.TradeStatePut(undeclared, &auctionhouse.TradeState{}); !errors.Is(err, types.ErrUndeclaredAccount) {
		t.Fatalf("expected undeclared error, got %v", err)
	}
	if err := m.TradeStateDelete(readOnly); !errors.Is(err, types.ErrReadOnlyAccount) {
		t.Fatalf("expected read-only delete error, got %v", err)
	}

	// Reads are not restricted.
	cursor, ok, err := m.CursorGet(readOnly)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), cursor.Generation)

	m.ClearGuard()
	require.NoError(t, m.CursorPut(undeclared, &rewardcenter.Cursor{}))
}

func TestGuardMergesDuplicateMetas(t *testing.T) {
	addr := testAddress(0x05)
	g := NewGuard([]types.AccountMeta{types.ReadOnly(addr, true), types.Writable(addr, false)})
	require.NoError(t, g.CheckWrite(addr))
}

func TestTxSeenBypassesGuard(t *testing.T) {
	m := newTestManager(t)
	m.SetGuard(NewGuard(nil))
	var hash [32]byte
	hash[0] = 0xaa
	seen, err := m.TxSeen(hash)
	require.NoError(t, err)
	require.False(t, seen)
	require.NoError(t, m.MarkTxSeen(hash))
	seen, err = m.TxSeen(hash)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestKVAppendDeduplicates(t *testing.T) {
	m := newTestManager(t)
	key := []byte("index")
	require.NoError(t, m.KVAppend(key, []byte("a")))
	require.NoError(t, m.KVAppend(key, []byte("b")))
	require.NoError(t, m.KVAppend(key, []byte("a")))
	var list [][]byte
	ok, err := m.KVGet(key, &list)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)
}

func TestEnsureStateVersion(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, EnsureStateVersion(m.Trie(), false))
	require.NoError(t, m.SetStateVersion(StateVersion+1))
	if err := EnsureStateVersion(m.Trie(), false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	require.NoError(t, EnsureStateVersion(m.Trie(), true))
}
