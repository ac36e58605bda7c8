package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rewardcenter/core/genesis"
	"rewardcenter/core/state"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/rewardcenter"
	"rewardcenter/native/token"
	"rewardcenter/storage"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type market struct {
	t         *testing.T
	db        storage.Database
	exec      *Executor
	nonce     uint64
	authority *crypto.PrivateKey
	seller    *crypto.PrivateKey
	buyers    []*crypto.PrivateKey
	nft       crypto.Address
	reward    crypto.Address
	house     crypto.Address
	center    crypto.Address
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func (m *market) submit(keys []*crypto.PrivateKey, ixs ...types.Instruction) *types.Receipt {
	m.t.Helper()
	m.nonce++
	tx := &types.Transaction{Nonce: m.nonce, Payer: keys[0].Address(), Instructions: ixs}
	require.NoError(m.t, tx.Sign(keys...))
	receipt, err := m.exec.Submit(context.Background(), tx)
	require.NoError(m.t, err)
	return receipt
}

func (m *market) mustSubmit(keys []*crypto.PrivateKey, ixs ...types.Instruction) *types.Receipt {
	m.t.Helper()
	receipt := m.submit(keys, ixs...)
	if !receipt.Success {
		m.t.Fatalf("transaction failed: %+v", receipt.Error)
	}
	return receipt
}

func ix(t *testing.T, build func() (types.Instruction, error)) types.Instruction {
	t.Helper()
	out, err := build()
	require.NoError(t, err)
	return out
}

// newMarket builds a ledger with an auction house over the native mint, a
// reward center with a funded treasury and a seller holding one NFT.
func newMarket(t *testing.T, treasuryFunds uint64, buyers int) *market {
	t.Helper()
	m := &market{t: t, db: storage.NewMemDB(), authority: newKey(t), seller: newKey(t)}
	t.Cleanup(m.db.Close)
	alloc := map[string]string{}
	for i := 0; i < buyers; i++ {
		key := newKey(t)
		m.buyers = append(m.buyers, key)
		alloc[key.Address().String()] = "10000"
	}
	spec := &genesis.GenesisSpec{GenesisTime: "2024-01-01T00:00:00Z", Alloc: alloc}
	require.NoError(t, spec.Validate())
	exec, err := Open(m.db, spec)
	require.NoError(t, err)
	exec.SetNowFunc(func() time.Time { return testTime })
	m.exec = exec

	rewardKey := newKey(t)
	nftKey := newKey(t)
	m.reward = rewardKey.Address()
	m.nft = nftKey.Address()
	authority := m.authority.Address()
	seller := m.seller.Address()

	m.mustSubmit([]*crypto.PrivateKey{m.authority, rewardKey},
		ix(t, func() (types.Instruction, error) { return token.NewInitializeMintInstruction(m.reward, authority, 9) }))
	sellerNFT, _ := token.FindAssociatedTokenAddress(seller, m.nft)
	m.mustSubmit([]*crypto.PrivateKey{m.seller, nftKey},
		ix(t, func() (types.Instruction, error) { return token.NewInitializeMintInstruction(m.nft, seller, 0) }),
		ix(t, func() (types.Instruction, error) {
			return token.NewCreateAssociatedAccountInstruction(seller, seller, m.nft)
		}),
		ix(t, func() (types.Instruction, error) { return token.NewMintToInstruction(m.nft, sellerNFT, seller, 1) }))

	m.house, _ = auctionhouse.FindAuctionHouseAddress(authority, token.NativeMint)
	m.center, _ = rewardcenter.FindRewardCenterAddress(m.house)
	m.mustSubmit([]*crypto.PrivateKey{m.authority},
		ix(t, func() (types.Instruction, error) {
			return auctionhouse.NewCreateAuctionHouseInstruction(auctionhouse.CreateAuctionHouseArgs{
				Authority:    authority,
				TreasuryMint: token.NativeMint,
			})
		}),
		ix(t, func() (types.Instruction, error) {
			return rewardcenter.NewCreateRewardCenterInstruction(authority, m.reward, m.house, rewardcenter.DefaultRewardRules())
		}))
	if treasuryFunds > 0 {
		treasury := rewardcenter.FindTreasuryAddress(m.center, m.reward)
		m.mustSubmit([]*crypto.PrivateKey{m.authority},
			ix(t, func() (types.Instruction, error) {
				return token.NewMintToInstruction(m.reward, treasury, authority, treasuryFunds)
			}))
	}
	return m
}

func (m *market) list(price uint64) rewardcenter.ListingAccounts {
	m.t.Helper()
	accts := rewardcenter.ListingAccountsFor(m.seller.Address(), m.house, m.nft, 0)
	m.mustSubmit([]*crypto.PrivateKey{m.seller},
		ix(m.t, func() (types.Instruction, error) { return rewardcenter.NewCreateListingInstruction(accts, price, 1) }))
	return accts
}

func (m *market) buyInstruction(buyer crypto.Address, accts rewardcenter.ListingAccounts) types.Instruction {
	m.t.Helper()
	var out types.Instruction
	require.NoError(m.t, m.exec.View(func(st *state.Manager) error {
		listing, _, err := st.ListingGet(accts.Listing)
		if err != nil {
			return err
		}
		house, _, err := st.AuctionHouseGet(m.house)
		if err != nil {
			return err
		}
		center, _, err := st.RewardCenterGet(m.center)
		if err != nil {
			return err
		}
		out, err = rewardcenter.NewBuyListingInstruction(buyer, accts, listing, house, center)
		return err
	}))
	return out
}

func (m *market) listing(addr crypto.Address) *rewardcenter.Listing {
	m.t.Helper()
	var out *rewardcenter.Listing
	require.NoError(m.t, m.exec.View(func(st *state.Manager) error {
		var err error
		out, _, err = st.ListingGet(addr)
		return err
	}))
	require.NotNil(m.t, out)
	return out
}

func (m *market) balance(owner, mint crypto.Address) uint64 {
	m.t.Helper()
	addr, _ := token.FindAssociatedTokenAddress(owner, mint)
	var out uint64
	require.NoError(m.t, m.exec.View(func(st *state.Manager) error {
		acc, ok, err := st.TokenAccountGet(addr)
		if ok {
			out = acc.Amount
		}
		return err
	}))
	return out
}

func TestBuyListingSettlesAndPublishes(t *testing.T) {
	m := newMarket(t, 10_000, 1)
	accts := m.list(1000)
	require.Equal(t, uint64(testTime.Unix()), m.listing(accts.Listing).CreatedAt)

	sub, cancel := m.exec.Hub().Subscribe(8)
	defer cancel()

	buyer := m.buyers[0]
	receipt := m.mustSubmit([]*crypto.PrivateKey{buyer}, m.buyInstruction(buyer.Address(), accts))
	require.Equal(t, rewardcenter.ListingSold, m.listing(accts.Listing).State)
	require.Equal(t, uint64(1), m.balance(buyer.Address(), m.nft))
	require.Equal(t, uint64(9_000), m.balance(buyer.Address(), token.NativeMint))
	require.Equal(t, uint64(1_000), m.balance(m.seller.Address(), token.NativeMint))
	require.Equal(t, uint64(180), m.balance(buyer.Address(), m.reward))
	require.Equal(t, uint64(20), m.balance(m.seller.Address(), m.reward))
	require.Equal(t, [32]byte(m.exec.Head().Root), receipt.StateRoot)

	select {
	case msg := <-sub:
		require.Equal(t, receipt.Seq, msg.Seq)
		var kinds []string
		for _, evt := range msg.Events {
			kinds = append(kinds, evt.Type)
		}
		require.Contains(t, kinds, rewardcenter.EventTypeListingSold)
		require.Contains(t, kinds, rewardcenter.EventTypeRewardPaid)
		require.Contains(t, kinds, auctionhouse.EventTypeSaleExecuted)
	case <-time.After(time.Second):
		t.Fatalf("no committed message published")
	}
}

func TestConcurrentBuysSettleOnce(t *testing.T) {
	m := newMarket(t, 10_000, 2)
	accts := m.list(1000)
	txs := make([]*types.Transaction, len(m.buyers))
	for i, buyer := range m.buyers {
		tx := &types.Transaction{Nonce: 100, Payer: buyer.Address(), Instructions: []types.Instruction{m.buyInstruction(buyer.Address(), accts)}}
		require.NoError(t, tx.Sign(buyer))
		txs[i] = tx
	}

	receipts := make([]*types.Receipt, len(txs))
	var wg sync.WaitGroup
	for i := range txs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := m.exec.Submit(context.Background(), txs[i])
			if err == nil {
				receipts[i] = receipt
			}
		}(i)
	}
	wg.Wait()

	var won, conflicted int
	for _, receipt := range receipts {
		require.NotNil(t, receipt)
		switch {
		case receipt.Success:
			won++
		case receipt.Error.Code == rewardcenter.KindStateConflict.Code():
			conflicted++
		default:
			t.Fatalf("unexpected failure %+v", receipt.Error)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, conflicted)
	require.Equal(t, rewardcenter.ListingSold, m.listing(accts.Listing).State)
}

func TestFailedSettlementLeavesRootUnchanged(t *testing.T) {
	m := newMarket(t, 10_000, 1)
	accts := m.list(1000)
	before := m.exec.Head()

	sub, cancel := m.exec.Hub().Subscribe(8)
	defer cancel()

	broke := newKey(t)
	receipt := m.submit([]*crypto.PrivateKey{broke}, m.buyInstruction(broke.Address(), accts))
	require.False(t, receipt.Success)
	require.Equal(t, rewardcenter.KindAdapter.Code(), receipt.Error.Code)
	require.Equal(t, "AdapterError", receipt.Error.Kind)
	require.Equal(t, before, m.exec.Head())
	require.Equal(t, rewardcenter.ListingActive, m.listing(accts.Listing).State)
	require.Empty(t, receipt.Events)

	select {
	case msg := <-sub:
		t.Fatalf("failed transaction published %+v", msg)
	default:
	}
}

func TestUndeclaredWriteIsRejected(t *testing.T) {
	m := newMarket(t, 0, 0)
	accts := rewardcenter.ListingAccountsFor(m.seller.Address(), m.house, m.nft, 0)
	instruction := ix(t, func() (types.Instruction, error) { return rewardcenter.NewCreateListingInstruction(accts, 1000, 1) })
	for i := range instruction.Accounts {
		if instruction.Accounts[i].Address == accts.Listing {
			instruction.Accounts[i].Writable = false
		}
	}
	before := m.exec.Head()
	receipt := m.submit([]*crypto.PrivateKey{m.seller}, instruction)
	require.False(t, receipt.Success)
	require.Equal(t, rewardcenter.KindAddressMismatch.Code(), receipt.Error.Code)
	require.Equal(t, before, m.exec.Head())
	require.Equal(t, uint64(1), m.balance(m.seller.Address(), m.nft))
}

func TestReplayAndSignatureChecks(t *testing.T) {
	m := newMarket(t, 0, 0)
	treasury := rewardcenter.FindTreasuryAddress(m.center, m.reward)
	fund := ix(t, func() (types.Instruction, error) {
		return token.NewMintToInstruction(m.reward, treasury, m.authority.Address(), 5)
	})
	tx := &types.Transaction{Nonce: 42, Payer: m.authority.Address(), Instructions: []types.Instruction{fund}}
	require.NoError(t, tx.Sign(m.authority))
	receipt, err := m.exec.Submit(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, receipt.Success)

	if _, err := m.exec.Submit(context.Background(), tx); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}

	forged := &types.Transaction{Nonce: 43, Payer: m.authority.Address(), Instructions: []types.Instruction{fund}}
	require.NoError(t, forged.Sign(m.authority))
	forged.Signatures[0][5] ^= 0xff
	if _, err := m.exec.Submit(context.Background(), forged); err == nil {
		t.Fatalf("expected signature error")
	}

	unknown := &types.Transaction{Nonce: 44, Payer: m.authority.Address(), Instructions: []types.Instruction{{Program: crypto.ProgramAddress("nope")}}}
	require.NoError(t, unknown.Sign(m.authority))
	receipt, err = m.exec.Submit(context.Background(), unknown)
	require.NoError(t, err)
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error.Message, "unknown program")
}

func TestOpenResumesFromHead(t *testing.T) {
	m := newMarket(t, 500, 0)
	head := m.exec.Head()
	require.NotZero(t, head.Seq)

	reopened, err := Open(m.db, nil)
	require.NoError(t, err)
	require.Equal(t, head, reopened.Head())
	data, err := reopened.AccountData(m.center)
	require.NoError(t, err)
	name, _, err := state.DecodeAccount(data)
	require.NoError(t, err)
	require.Equal(t, state.RecordRewardCenter, name)

	if _, err := Open(storage.NewMemDB(), nil); !errors.Is(err, ErrNoGenesis) {
		t.Fatalf("expected missing genesis error, got %v", err)
	}
}

// settleThenFail applies the real settlement and then reports failure, so
// every effect of the sale must be discarded by the host.
type settleThenFail struct {
	*auctionhouse.Engine
}

var errSettlementRejected = errors.New("settlement rejected")

func (h settleThenFail) ExecuteSale(signer crypto.Signer, sell, bid auctionhouse.EscrowHandle) (auctionhouse.SettlementReceipt, error) {
	if _, err := h.Engine.ExecuteSale(signer, sell, bid); err != nil {
		return auctionhouse.SettlementReceipt{}, err
	}
	return auctionhouse.SettlementReceipt{}, errSettlementRejected
}

func (m *market) acceptInstruction(listingAccts rewardcenter.ListingAccounts, offerAccts rewardcenter.OfferAccounts) types.Instruction {
	m.t.Helper()
	var out types.Instruction
	require.NoError(m.t, m.exec.View(func(st *state.Manager) error {
		offer, _, err := st.OfferGet(offerAccts.Offer)
		if err != nil {
			return err
		}
		house, _, err := st.AuctionHouseGet(m.house)
		if err != nil {
			return err
		}
		center, _, err := st.RewardCenterGet(m.center)
		if err != nil {
			return err
		}
		out, err = rewardcenter.NewAcceptOfferInstruction(listingAccts, offerAccts, offer, house, center)
		return err
	}))
	return out
}

type marketSnapshot struct {
	head         Head
	listing      rewardcenter.ListingState
	offer        rewardcenter.OfferState
	treasury     uint64
	buyerPay     uint64
	sellerPay    uint64
	buyerNFT     uint64
	buyerRewards uint64
}

func (m *market) snapshot(buyer crypto.Address, listing, offer crypto.Address) marketSnapshot {
	m.t.Helper()
	snap := marketSnapshot{
		head:         m.exec.Head(),
		listing:      m.listing(listing).State,
		treasury:     m.balance(m.center, m.reward),
		buyerPay:     m.balance(buyer, token.NativeMint),
		sellerPay:    m.balance(m.seller.Address(), token.NativeMint),
		buyerNFT:     m.balance(buyer, m.nft),
		buyerRewards: m.balance(buyer, m.reward),
	}
	require.NoError(m.t, m.exec.View(func(st *state.Manager) error {
		o, ok, err := st.OfferGet(offer)
		if ok {
			snap.offer = o.State
		}
		return err
	}))
	return snap
}

func TestAdapterFailureAtSettlementRollsBack(t *testing.T) {
	m := newMarket(t, 10_000, 2)
	listingAccts := m.list(1000)
	offerer := m.buyers[0]
	offerAccts := rewardcenter.OfferAccountsFor(offerer.Address(), m.house, m.nft, 0)
	m.mustSubmit([]*crypto.PrivateKey{offerer},
		ix(t, func() (types.Instruction, error) {
			return rewardcenter.NewCreateOfferInstruction(offerAccts, token.NativeMint, 1000, 1)
		}))
	m.exec.rewards.SetAuctionHouse(settleThenFail{Engine: m.exec.house})

	t.Run("accept_offer", func(t *testing.T) {
		before := m.snapshot(offerer.Address(), listingAccts.Listing, offerAccts.Offer)
		receipt := m.submit([]*crypto.PrivateKey{m.seller}, m.acceptInstruction(listingAccts, offerAccts))
		require.False(t, receipt.Success)
		require.Equal(t, rewardcenter.KindAdapter.Code(), receipt.Error.Code)
		require.Contains(t, receipt.Error.Message, errSettlementRejected.Error())
		require.Equal(t, before, m.snapshot(offerer.Address(), listingAccts.Listing, offerAccts.Offer))
		require.Equal(t, rewardcenter.ListingActive, before.listing)
		require.Equal(t, rewardcenter.OfferActive, before.offer)
		require.Equal(t, uint64(10_000), before.treasury)
	})

	t.Run("buy_listing", func(t *testing.T) {
		buyer := m.buyers[1]
		before := m.snapshot(buyer.Address(), listingAccts.Listing, offerAccts.Offer)
		receipt := m.submit([]*crypto.PrivateKey{buyer}, m.buyInstruction(buyer.Address(), listingAccts))
		require.False(t, receipt.Success)
		require.Equal(t, rewardcenter.KindAdapter.Code(), receipt.Error.Code)
		require.Equal(t, before, m.snapshot(buyer.Address(), listingAccts.Listing, offerAccts.Offer))
		require.Equal(t, uint64(10_000), before.buyerPay)
	})

	_, ok, err := m.exec.Committed(m.exec.HeadSeq() + 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBuyListingRejectsBuyerWithMatchingOffer(t *testing.T) {
	m := newMarket(t, 10_000, 1)
	listingAccts := m.list(1000)
	buyer := m.buyers[0]
	offerAccts := rewardcenter.OfferAccountsFor(buyer.Address(), m.house, m.nft, 0)
	m.mustSubmit([]*crypto.PrivateKey{buyer},
		ix(t, func() (types.Instruction, error) {
			return rewardcenter.NewCreateOfferInstruction(offerAccts, token.NativeMint, 1000, 1)
		}))

	before := m.exec.Head()
	receipt := m.submit([]*crypto.PrivateKey{buyer}, m.buyInstruction(buyer.Address(), listingAccts))
	require.False(t, receipt.Success)
	require.Equal(t, rewardcenter.KindStateConflict.Code(), receipt.Error.Code)
	require.Equal(t, before, m.exec.Head())

	m.mustSubmit([]*crypto.PrivateKey{m.seller}, m.acceptInstruction(listingAccts, offerAccts))
	require.Equal(t, rewardcenter.ListingSold, m.listing(listingAccts.Listing).State)
	require.Equal(t, uint64(1), m.balance(buyer.Address(), m.nft))
}

func TestCommittedTransactionsAreJournaled(t *testing.T) {
	m := newMarket(t, 10_000, 1)
	accts := m.list(1000)
	buyer := m.buyers[0]
	receipt := m.mustSubmit([]*crypto.PrivateKey{buyer}, m.buyInstruction(buyer.Address(), accts))
	require.Equal(t, receipt.Seq, m.exec.HeadSeq())

	msg, ok, err := m.exec.Committed(receipt.Seq)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, receipt.TxHash, msg.TxHash)
	require.Len(t, msg.Events, len(receipt.Events))
	for i, evt := range receipt.Events {
		require.Equal(t, evt.Type, msg.Events[i].Type)
		require.Len(t, msg.Events[i].Attributes, len(evt.Attributes))
		for k, v := range evt.Attributes {
			require.Equal(t, v, msg.Events[i].Attributes[k], "event %d attribute %s", i, k)
		}
	}

	for seq := uint64(1); seq <= receipt.Seq; seq++ {
		_, ok, err := m.exec.Committed(seq)
		require.NoError(t, err)
		require.True(t, ok, "seq %d not journaled", seq)
	}

	reopened, err := Open(m.db, nil)
	require.NoError(t, err)
	again, ok, err := reopened.Committed(receipt.Seq)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, msg, again)
}
