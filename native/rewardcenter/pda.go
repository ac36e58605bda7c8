package rewardcenter

import (
	"rewardcenter/crypto"
	"rewardcenter/native/token"
)

const (
	seedRewardCenter  = "reward_center"
	seedListing       = "listing"
	seedListingCursor = "listing_cursor"
	seedOffer         = "offer"
	seedOfferCursor   = "offer_cursor"
)

// FindRewardCenterAddress derives the reward center overlaying house.
func FindRewardCenterAddress(house crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{[]byte(seedRewardCenter), house[:]}, ProgramID)
}

// FindTreasuryAddress is the reward token account owned by the center.
func FindTreasuryAddress(center, rewardMint crypto.Address) crypto.Address {
	addr, _ := token.FindAssociatedTokenAddress(center, rewardMint)
	return addr
}

// FindListingAddress derives the generation-th listing of seller for the NFT
// identified by metadata.
func FindListingAddress(seller, metadata, center crypto.Address, generation uint64) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{
		[]byte(seedListing), seller[:], metadata[:], center[:], crypto.Uint64Seed(generation),
	}, ProgramID)
}

// FindListingCursorAddress derives the cursor tracking listings of
// (seller, metadata) under center.
func FindListingCursorAddress(seller, metadata, center crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{
		[]byte(seedListingCursor), seller[:], metadata[:], center[:],
	}, ProgramID)
}

// FindOfferAddress derives the generation-th offer of buyer for the NFT
// identified by metadata.
func FindOfferAddress(buyer, metadata, center crypto.Address, generation uint64) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{
		[]byte(seedOffer), buyer[:], metadata[:], center[:], crypto.Uint64Seed(generation),
	}, ProgramID)
}

// FindOfferCursorAddress derives the cursor tracking offers of
// (buyer, metadata) under center.
func FindOfferCursorAddress(buyer, metadata, center crypto.Address) (crypto.Address, uint8) {
	return crypto.MustFindProgramAddress([][]byte{
		[]byte(seedOfferCursor), buyer[:], metadata[:], center[:],
	}, ProgramID)
}

func centerAuthority(house crypto.Address, bump uint8) crypto.Authority {
	return crypto.NewAuthority(ProgramID, bump, []byte(seedRewardCenter), house[:])
}
