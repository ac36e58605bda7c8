package rewardcenter

import (
	"strconv"

	"rewardcenter/crypto"
)

const (
	EventTypeRewardCenterCreated   = "rewardcenter.created"
	EventTypeRewardCenterEdited    = "rewardcenter.edited"
	EventTypeRewardCenterWithdrawn = "rewardcenter.withdrawn"
	EventTypeListingCreated        = "rewardcenter.listing.created"
	EventTypeListingUpdated        = "rewardcenter.listing.updated"
	EventTypeListingClosed         = "rewardcenter.listing.closed"
	EventTypeListingSold           = "rewardcenter.listing.sold"
	EventTypeOfferCreated          = "rewardcenter.offer.created"
	EventTypeOfferClosed           = "rewardcenter.offer.closed"
	EventTypeOfferAccepted         = "rewardcenter.offer.accepted"
	EventTypeRewardPaid            = "rewardcenter.reward.paid"
	EventTypeRewardReduced         = "rewardcenter.reward.reduced"
	EventTypeRewardSkipped         = "rewardcenter.reward.skipped"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func rulesAttributes(attrs map[string]string, rules RewardRules) map[string]string {
	attrs["operand"] = rules.Operand.String()
	attrs["payoutNumeral"] = u64(rules.PayoutNumeral)
	attrs["sellerRewardBps"] = strconv.FormatUint(uint64(rules.SellerRewardPayoutBasisPoints), 10)
	return attrs
}

func listingAttributes(addr crypto.Address, l *Listing) map[string]string {
	return map[string]string{
		"listing":      addr.String(),
		"rewardCenter": l.RewardCenter.String(),
		"seller":       l.Seller.String(),
		"metadata":     l.Metadata.String(),
		"price":        u64(l.Price),
		"tokenSize":    u64(l.TokenSize),
		"state":        l.State.String(),
		"generation":   u64(l.Generation),
	}
}

func offerAttributes(addr crypto.Address, o *Offer) map[string]string {
	return map[string]string{
		"offer":        addr.String(),
		"rewardCenter": o.RewardCenter.String(),
		"buyer":        o.Buyer.String(),
		"metadata":     o.Metadata.String(),
		"price":        u64(o.Price),
		"tokenSize":    u64(o.TokenSize),
		"state":        o.State.String(),
		"generation":   u64(o.Generation),
	}
}
