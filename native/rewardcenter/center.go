package rewardcenter

import (
	"rewardcenter/crypto"
)

// CreateRewardCenterAccounts lists the addresses create_reward_center acts on.
type CreateRewardCenterAccounts struct {
	Wallet       crypto.Address
	Mint         crypto.Address
	AuctionHouse crypto.Address
	RewardCenter crypto.Address
	Treasury     crypto.Address
}

// CreateRewardCenter initializes the center overlaying the auction house
// together with its treasury and takes over the house's auctioneer role. The
// wallet must be the house authority.
func (e *Engine) CreateRewardCenter(signer crypto.Signer, accts CreateRewardCenterAccounts, rules RewardRules) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := rules.Validate(); err != nil {
		return err
	}
	centerAddr, bump := FindRewardCenterAddress(accts.AuctionHouse)
	if centerAddr != accts.RewardCenter {
		return newError(KindAddressMismatch, "reward center %s is not derived from auction house %s", accts.RewardCenter, accts.AuctionHouse)
	}
	if treasury := FindTreasuryAddress(centerAddr, accts.Mint); treasury != accts.Treasury {
		return newError(KindAddressMismatch, "treasury %s is not the center's %s account", accts.Treasury, accts.Mint)
	}
	if err := requireSigner(signer, accts.Wallet, "wallet"); err != nil {
		return err
	}
	house, err := e.house.House(accts.AuctionHouse)
	if err != nil {
		return adapterError("load auction house", err)
	}
	if house.Authority != accts.Wallet {
		return newError(KindAuthorization, "wallet %s is not the auction house authority", accts.Wallet)
	}
	if _, err := e.tokens.Mint(accts.Mint); err != nil {
		return wrapError(KindConfiguration, "reward mint", err)
	}
	if _, ok, err := e.state.RewardCenterGet(centerAddr); err != nil {
		return err
	} else if ok {
		return newError(KindStateConflict, "reward center %s already exists", centerAddr)
	}
	treasury, err := e.tokens.EnsureAccount(centerAddr, accts.Mint)
	if err != nil {
		return tokenError("create treasury", err)
	}
	center := &RewardCenter{
		AuctionHouse: accts.AuctionHouse,
		TokenMint:    accts.Mint,
		Authority:    accts.Wallet,
		Rules:        rules,
		Treasury:     treasury,
		Bump:         bump,
	}
	if err := e.state.RewardCenterPut(centerAddr, center); err != nil {
		return err
	}
	if err := e.house.DelegateAuctioneer(signer, accts.AuctionHouse, centerAddr); err != nil {
		return adapterError("delegate auctioneer", err)
	}
	e.emit(EventTypeRewardCenterCreated, rulesAttributes(map[string]string{
		"rewardCenter": centerAddr.String(),
		"auctionHouse": accts.AuctionHouse.String(),
		"tokenMint":    accts.Mint.String(),
		"treasury":     treasury.String(),
		"authority":    accts.Wallet.String(),
	}, rules))
	e.logger.Info("reward center created",
		"rewardCenter", centerAddr.String(),
		"auctionHouse", accts.AuctionHouse.String())
	return nil
}

// EditRewardCenterAccounts lists the addresses edit_reward_center acts on.
type EditRewardCenterAccounts struct {
	Wallet       crypto.Address
	AuctionHouse crypto.Address
	RewardCenter crypto.Address
}

// EditRewardCenter replaces the center's rules. Listings and offers read the
// rules at settlement time, so existing ones pick up the change.
func (e *Engine) EditRewardCenter(signer crypto.Signer, accts EditRewardCenterAccounts, rules RewardRules) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, err := e.loadCenter(accts.AuctionHouse, accts.RewardCenter)
	if err != nil {
		return err
	}
	if err := requireSigner(signer, accts.Wallet, "wallet"); err != nil {
		return err
	}
	if center.Authority != accts.Wallet {
		return newError(KindAuthorization, "wallet %s is not the reward center authority", accts.Wallet)
	}
	if err := rules.Validate(); err != nil {
		return err
	}
	previous := center.Rules
	center.Rules = rules
	if err := e.state.RewardCenterPut(accts.RewardCenter, center); err != nil {
		return err
	}
	attrs := rulesAttributes(map[string]string{"rewardCenter": accts.RewardCenter.String()}, rules)
	attrs["previousOperand"] = previous.Operand.String()
	attrs["previousPayoutNumeral"] = u64(previous.PayoutNumeral)
	e.emit(EventTypeRewardCenterEdited, attrs)
	return nil
}

// WithdrawAccounts lists the addresses withdraw_reward_center_funds acts on.
// Destination is a token account of the reward mint.
type WithdrawAccounts struct {
	Wallet       crypto.Address
	AuctionHouse crypto.Address
	RewardCenter crypto.Address
	Treasury     crypto.Address
	Destination  crypto.Address
}

// WithdrawRewardCenterFunds moves amount reward tokens out of the treasury.
// Withdrawing more than the disbursable balance fails with
// InsufficientFunds and moves nothing.
func (e *Engine) WithdrawRewardCenterFunds(signer crypto.Signer, accts WithdrawAccounts, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	center, err := e.loadCenter(accts.AuctionHouse, accts.RewardCenter)
	if err != nil {
		return err
	}
	if center.Treasury != accts.Treasury {
		return newError(KindAddressMismatch, "treasury %s does not belong to reward center", accts.Treasury)
	}
	if err := requireSigner(signer, accts.Wallet, "wallet"); err != nil {
		return err
	}
	if center.Authority != accts.Wallet {
		return newError(KindAuthorization, "wallet %s is not the reward center authority", accts.Wallet)
	}
	available, err := e.disbursable(center.Treasury)
	if err != nil {
		return err
	}
	if amount > available {
		return newError(KindInsufficientFunds, "withdraw %d exceeds disbursable treasury balance %d", amount, available)
	}
	authority := centerAuthority(center.AuctionHouse, center.Bump)
	if err := e.tokens.Transfer(authority, center.Treasury, accts.Destination, amount); err != nil {
		return tokenError("withdraw", err)
	}
	e.emit(EventTypeRewardCenterWithdrawn, map[string]string{
		"rewardCenter": accts.RewardCenter.String(),
		"treasury":     center.Treasury.String(),
		"destination":  accts.Destination.String(),
		"amount":       u64(amount),
	})
	return nil
}
