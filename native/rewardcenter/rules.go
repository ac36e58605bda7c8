package rewardcenter

import (
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"
)

// MaxBasisPoints is one whole in basis points.
const MaxBasisPoints = 10_000

// Operand selects how the payout numeral turns a sale price into the reward
// pool.
type Operand uint8

const (
	OperandDivide Operand = iota
	OperandMultiply
)

func (o Operand) String() string {
	switch o {
	case OperandDivide:
		return "Divide"
	case OperandMultiply:
		return "Multiply"
	default:
		return fmt.Sprintf("Operand(%d)", uint8(o))
	}
}

// MarshalText renders the operand name.
func (o Operand) MarshalText() ([]byte, error) {
	switch o {
	case OperandDivide, OperandMultiply:
		return []byte(o.String()), nil
	default:
		return nil, fmt.Errorf("unknown operand %d", uint8(o))
	}
}

// UnmarshalText parses "Divide" or "Multiply" (case-insensitive). "Multiple"
// is accepted for configs written against older tooling.
func (o *Operand) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "divide":
		*o = OperandDivide
	case "multiply", "multiple":
		*o = OperandMultiply
	default:
		return fmt.Errorf("unknown operand %q", string(text))
	}
	return nil
}

// RewardRules converts a sale price into buyer and seller reward amounts.
type RewardRules struct {
	Operand                       Operand `json:"mathematical_operand" yaml:"mathematical_operand"`
	PayoutNumeral                 uint64  `json:"payout_numeral" yaml:"payout_numeral"`
	SellerRewardPayoutBasisPoints uint16  `json:"seller_reward_payout_basis_points" yaml:"seller_reward_payout_basis_points"`
}

// DefaultRewardRules pays a fifth of the price, a tenth of it to the seller.
func DefaultRewardRules() RewardRules {
	return RewardRules{Operand: OperandDivide, PayoutNumeral: 5, SellerRewardPayoutBasisPoints: 1000}
}

// Validate reports configuration errors.
func (r RewardRules) Validate() error {
	if r.Operand != OperandDivide && r.Operand != OperandMultiply {
		return newError(KindConfiguration, "unknown operand %d", uint8(r.Operand))
	}
	if r.PayoutNumeral == 0 {
		return newError(KindConfiguration, "payout numeral must be non-zero")
	}
	if r.SellerRewardPayoutBasisPoints > MaxBasisPoints {
		return newError(KindConfiguration, "seller reward basis points %d exceed %d", r.SellerRewardPayoutBasisPoints, MaxBasisPoints)
	}
	return nil
}

// Pool applies the operand to price. Multiplication saturates at the uint64
// maximum; a zero divisor yields an empty pool.
func (r RewardRules) Pool(price uint64) uint64 {
	switch r.Operand {
	case OperandDivide:
		if r.PayoutNumeral == 0 {
			return 0
		}
		return price / r.PayoutNumeral
	case OperandMultiply:
		product := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(r.PayoutNumeral))
		if !product.IsUint64() {
			return math.MaxUint64
		}
		return product.Uint64()
	default:
		return 0
	}
}

// ComputeReward splits the pool derived from price. The seller receives
// pool*bps/10000 rounded down and the buyer the remainder. It never panics
// and is deterministic; basis points above 10000 are clamped to the whole
// pool.
func ComputeReward(price uint64, rules RewardRules) (buyer, seller uint64) {
	pool := rules.Pool(price)
	bps := uint64(rules.SellerRewardPayoutBasisPoints)
	if bps > MaxBasisPoints {
		bps = MaxBasisPoints
	}
	share := new(uint256.Int).Mul(uint256.NewInt(pool), uint256.NewInt(bps))
	share.Div(share, uint256.NewInt(MaxBasisPoints))
	seller = share.Uint64()
	return pool - seller, seller
}

// scale returns amount*available/total rounded down.
func scale(amount, available, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	out := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(available))
	out.Div(out, uint256.NewInt(total))
	return out.Uint64()
}
