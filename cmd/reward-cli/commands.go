package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rewardcenter/cmd/internal/passphrase"
	"rewardcenter/config"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/native/auctionhouse"
	"rewardcenter/native/rewardcenter"
	"rewardcenter/native/token"
)

const (
	defaultSellerFeeBps  = 100
	rewardMintDecimals   = 9
	defaultParamsFile    = "reward_center_params.yaml"
	commandTimeout       = time.Minute
	passphrasePromptText = "Keystore passphrase: "
)

var nowNanos = func() uint64 { return uint64(time.Now().UnixNano()) }

type commandEnv struct {
	client *client
	stdout io.Writer
	stderr io.Writer
	pass   *passphrase.Source
}

func (c *commandEnv) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *commandEnv) fail(err error) int {
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return 1
}

func (c *commandEnv) passphrase() *passphrase.Source {
	if c.pass == nil {
		c.pass = passphrase.NewSource(keystorePassEnv, passphrasePromptText)
	}
	return c.pass
}

func (c *commandEnv) loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--keystore is required")
	}
	pass, err := c.passphrase().Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

func parseAddress(flagName, value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, fmt.Errorf("--%s is required", flagName)
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--%s: %w", flagName, err)
	}
	return addr, nil
}

func (c *commandEnv) sendTx(ctx context.Context, payer *crypto.PrivateKey, ixs []types.Instruction, extra ...*crypto.PrivateKey) (*receipt, error) {
	tx := &types.Transaction{Nonce: nowNanos(), Payer: payer.Address(), Instructions: ixs}
	keys := append([]*crypto.PrivateKey{payer}, extra...)
	if err := tx.Sign(keys...); err != nil {
		return nil, err
	}
	return c.client.submit(ctx, tx)
}

func (c *commandEnv) generateKey(args []string) int {
	fs := c.flagSet("generate-key")
	out := fs.String("out", "wallet.keystore", "keystore output path")
	importFile := fs.String("import-file", "", "file holding a hex private key to encrypt instead of generating one")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := c.passphrase().Get()
	if err != nil {
		return c.fail(err)
	}
	if strings.TrimSpace(*importFile) != "" {
		key, err := importKey(*importFile)
		if err != nil {
			return c.fail(err)
		}
		if _, err := os.Stat(*out); err == nil {
			return c.fail(fmt.Errorf("keystore %s already exists", *out))
		}
		if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
			return c.fail(err)
		}
		fmt.Fprintf(c.stdout, "Address: %s\nKeystore: %s\n", key.Address(), *out)
		return 0
	}
	key, created, err := crypto.LoadOrCreateKeystore(*out, pass)
	if err != nil {
		return c.fail(fmt.Errorf("keystore %s: %w", *out, err))
	}
	if !created {
		fmt.Fprintf(c.stderr, "Keystore %s already exists, not overwriting\n", *out)
	}
	fmt.Fprintf(c.stdout, "Address: %s\nKeystore: %s\n", key.Address(), *out)
	return 0
}

func importKey(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secret := common.FromHex(strings.TrimSpace(string(raw)))
	if len(secret) != 32 {
		return nil, fmt.Errorf("%s: expected a 32-byte hex private key", path)
	}
	key, err := crypto.PrivateKeyFromBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

func (c *commandEnv) createRewardCenter(args []string) int {
	fs := c.flagSet("create-reward-center")
	keystore := fs.String("keystore", "", "wallet keystore (auction house authority)")
	houseFlag := fs.String("auction-house", "", "existing auction house address")
	mintFlag := fs.String("mint-rewards", "", "existing reward token mint address")
	paramsPath := fs.String("config", defaultParamsFile, "reward rules YAML or JSON file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	key, err := c.loadKey(*keystore)
	if err != nil {
		return c.fail(err)
	}
	wallet := key.Address()

	rules, err := config.LoadRewardRules(*paramsPath)
	switch {
	case errors.Is(err, config.ErrParamsNotFound):
		fmt.Fprintf(c.stderr, "Warning: %s not found, using default reward rules (%s %d, seller %d bps)\n",
			*paramsPath, rules.Operand, rules.PayoutNumeral, rules.SellerRewardPayoutBasisPoints)
	case err != nil:
		return c.fail(err)
	}

	var ixs []types.Instruction
	var signers []*crypto.PrivateKey

	var house crypto.Address
	if strings.TrimSpace(*houseFlag) != "" {
		if house, err = parseAddress("auction-house", *houseFlag); err != nil {
			return c.fail(err)
		}
	} else {
		houseArgs := auctionhouse.CreateAuctionHouseArgs{
			Authority:            wallet,
			TreasuryMint:         token.NativeMint,
			SellerFeeBasisPoints: defaultSellerFeeBps,
		}
		ix, err := auctionhouse.NewCreateAuctionHouseInstruction(houseArgs)
		if err != nil {
			return c.fail(err)
		}
		ixs = append(ixs, ix)
		house, _ = auctionhouse.FindAuctionHouseAddress(wallet, token.NativeMint)
	}

	var rewardMint crypto.Address
	createdMint := false
	if strings.TrimSpace(*mintFlag) != "" {
		if rewardMint, err = parseAddress("mint-rewards", *mintFlag); err != nil {
			return c.fail(err)
		}
	} else {
		mintKey, err := crypto.GeneratePrivateKey()
		if err != nil {
			return c.fail(err)
		}
		rewardMint = mintKey.Address()
		createdMint = true
		initIx, err := token.NewInitializeMintInstruction(rewardMint, wallet, rewardMintDecimals)
		if err != nil {
			return c.fail(err)
		}
		ataIx, err := token.NewCreateAssociatedAccountInstruction(wallet, wallet, rewardMint)
		if err != nil {
			return c.fail(err)
		}
		ixs = append(ixs, initIx, ataIx)
		signers = append(signers, mintKey)
	}

	centerIx, err := rewardcenter.NewCreateRewardCenterInstruction(wallet, rewardMint, house, rules)
	if err != nil {
		return c.fail(err)
	}
	ixs = append(ixs, centerIx)

	rcpt, err := c.sendTx(ctx, key, ixs, signers...)
	if err != nil {
		return c.fail(err)
	}
	center, _ := rewardcenter.FindRewardCenterAddress(house)
	fmt.Fprintf(c.stdout, "Auction house: %s\n", house)
	fmt.Fprintf(c.stdout, "Reward center: %s\n", center)
	if createdMint {
		fmt.Fprintf(c.stdout, "Reward mint: %s\n", rewardMint)
	}
	fmt.Fprintf(c.stdout, "Transaction: %s\n", rcpt.TxHash)
	return 0
}

func (c *commandEnv) withdrawTreasury(args []string) int {
	fs := c.flagSet("withdraw-auction-house-treasury")
	keystore := fs.String("keystore", "", "auction house authority keystore")
	houseFlag := fs.String("auction-house", "", "auction house address")
	amountFlag := fs.String("amount", "", "amount in whole units of the treasury mint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	houseAddr, err := parseAddress("auction-house", *houseFlag)
	if err != nil {
		return c.fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	key, err := c.loadKey(*keystore)
	if err != nil {
		return c.fail(err)
	}
	var house auctionhouse.AuctionHouse
	if _, err := c.client.record(ctx, houseAddr, &house); err != nil {
		return c.fail(err)
	}
	var mint token.Mint
	if _, err := c.client.record(ctx, house.TreasuryMint, &mint); err != nil {
		return c.fail(err)
	}
	amount, err := scaleAmount(*amountFlag, mint.Decimals)
	if err != nil {
		return c.fail(err)
	}
	ix, err := auctionhouse.NewWithdrawFromTreasuryInstruction(houseAddr, &house, amount)
	if err != nil {
		return c.fail(err)
	}
	rcpt, err := c.sendTx(ctx, key, []types.Instruction{ix})
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Withdrew %d base units from %s\nTransaction: %s\n", amount, house.Treasury, rcpt.TxHash)
	return 0
}

func (c *commandEnv) fundTreasury(args []string) int {
	fs := c.flagSet("fund-treasury")
	keystore := fs.String("keystore", "", "reward mint authority keystore")
	centerFlag := fs.String("reward-center", "", "reward center address")
	amountFlag := fs.String("amount", "", "amount in whole reward tokens")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	centerAddr, err := parseAddress("reward-center", *centerFlag)
	if err != nil {
		return c.fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	key, err := c.loadKey(*keystore)
	if err != nil {
		return c.fail(err)
	}
	var center rewardcenter.RewardCenter
	if _, err := c.client.record(ctx, centerAddr, &center); err != nil {
		return c.fail(err)
	}
	var mint token.Mint
	if _, err := c.client.record(ctx, center.TokenMint, &mint); err != nil {
		return c.fail(err)
	}
	amount, err := scaleAmount(*amountFlag, mint.Decimals)
	if err != nil {
		return c.fail(err)
	}
	ix, err := token.NewMintToInstruction(center.TokenMint, center.Treasury, key.Address(), amount)
	if err != nil {
		return c.fail(err)
	}
	rcpt, err := c.sendTx(ctx, key, []types.Instruction{ix})
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Minted %d base units into %s\nTransaction: %s\n", amount, center.Treasury, rcpt.TxHash)
	return 0
}

func (c *commandEnv) show(args []string) int {
	fs := c.flagSet("show")
	addrFlag := fs.String("address", "", "record address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := parseAddress("address", *addrFlag)
	if err != nil {
		return c.fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	acct, err := c.client.rawRecord(ctx, addr)
	if err != nil {
		return c.fail(err)
	}
	out, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, string(out))
	return 0
}
