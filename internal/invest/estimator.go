package invest

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/oracle"
	"BundleHub-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultSlippageBps 是未显式配置时应用于估算份额的滑点缓冲（2%）。
const DefaultSlippageBps = 200

var (
	shareScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	bpsScale   = big.NewInt(10_000)
)

// Estimate 是一次铸造的预估结果。Shares 未加缓冲，用于展示；MinShares
// 已按滑点折减，作为终结调用的下限参数。Approximate 表示报价预言机不可用，
// 估算退化为仅凭净值的近似值，调用方必须把这一状态透传给用户。
type Estimate struct {
	Shares      *big.Int
	MinShares   *big.Int
	SlippageBps uint32
	Approximate bool
}

// Estimator 把投入金额换算为预期份额。换算全程整数运算。
type Estimator struct {
	quoter          oracle.Quoter
	pricingToken    common.Address
	pricingDecimals uint8
	slippageBps     uint32
}

// NewEstimator 构建份额估算器。pricingToken 是净值的计价代币；slippageBps
// 为零时使用默认滑点。
func NewEstimator(quoter oracle.Quoter, pricingToken common.Address, pricingDecimals uint8, slippageBps uint32) *Estimator {
	if pricingDecimals == 0 {
		pricingDecimals = bundle.NativeDecimals
	}
	if slippageBps == 0 {
		slippageBps = DefaultSlippageBps
	}
	return &Estimator{
		quoter:          quoter,
		pricingToken:    pricingToken,
		pricingDecimals: pricingDecimals,
		slippageBps:     slippageBps,
	}
}

// Estimate 估算投入 amount 的 input 代币可铸造的份额。预估份额低于最小申购
// 单位时返回 BELOW_MINIMUM_INVESTMENT，错误信息中给出可行的最小投入金额。
func (e *Estimator) Estimate(ctx context.Context, snapshot *bundle.BundleSnapshot, input bundle.TokenRef, amount bundle.Amount, slippageBps uint32) (*Estimate, error) {
	if amount.Native == nil || amount.Native.Sign() <= 0 {
		return nil, xerrors.New(bundle.CodeInvalidAmount, "投入金额必须大于零")
	}
	if snapshot == nil || snapshot.NAV == nil || snapshot.NAV.Sign() <= 0 {
		return nil, xerrors.New(CodeQuoteUnavailable, "净值不可用，无法估算份额")
	}
	if slippageBps == 0 {
		slippageBps = e.slippageBps
	}
	if slippageBps >= uint32(bpsScale.Int64()) {
		return nil, xerrors.New(bundle.CodeInvalidAmount,
			fmt.Sprintf("滑点 %d bps 超出合法范围", slippageBps))
	}

	value, approximate := e.valueInPricingUnits(ctx, input, amount)

	// shares = value * 1e18 / nav，向下取整。
	shares := new(big.Int).Mul(value, shareScale)
	shares.Div(shares, snapshot.NAV)

	if snapshot.CreationUnit != nil && shares.Cmp(snapshot.CreationUnit) < 0 {
		minInput := minimumInput(amount.Native, shares, snapshot.CreationUnit)
		minHuman := bundle.ToHuman(minInput, input.Decimals)
		return nil, xerrors.New(CodeBelowMinimum,
			fmt.Sprintf("预计份额低于最小申购单位，至少需要投入 %s %s", minHuman, input.Symbol),
			xerrors.WithMetadata("min_input", minHuman),
			xerrors.WithMetadata("min_input_token", input.Symbol),
			xerrors.WithMetadata("estimated_shares", bundle.ToHuman(shares, bundle.NativeDecimals)),
		)
	}

	// minShares = shares * (10000 - slippage) / 10000。
	minShares := new(big.Int).Mul(shares, big.NewInt(int64(bpsScale.Int64())-int64(slippageBps)))
	minShares.Div(minShares, bpsScale)

	return &Estimate{
		Shares:      shares,
		MinShares:   minShares,
		SlippageBps: slippageBps,
		Approximate: approximate,
	}, nil
}

// valueInPricingUnits 把投入金额折算到净值计价单位（18 位精度）。报价失败时
// 退化为按面值换算并标记近似。
func (e *Estimator) valueInPricingUnits(ctx context.Context, input bundle.TokenRef, amount bundle.Amount) (*big.Int, bool) {
	if input.Address == e.pricingToken {
		return scaleDecimals(amount.Native, input.Decimals, bundle.NativeDecimals), false
	}
	if e.quoter != nil {
		quoted, err := e.quoter.Quote(ctx, amount.Native, input.Address, e.pricingToken)
		if err == nil && quoted != nil {
			return scaleDecimals(quoted, e.pricingDecimals, bundle.NativeDecimals), false
		}
		logger.L().Warn("报价查询失败，按面值近似估算",
			slog.String("token", input.Address.Hex()),
			slog.Any("error", err),
		)
	}
	return scaleDecimals(amount.Native, input.Decimals, bundle.NativeDecimals), true
}

// minimumInput 按线性比例反推出恰好达到最小申购单位所需的投入，向上取整。
func minimumInput(inputNative, shares, creationUnit *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		// 份额为零时无法按比例反推，保守地把投入按单位份额等比放大。
		shares = big.NewInt(1)
	}
	num := new(big.Int).Mul(inputNative, creationUnit)
	num.Add(num, new(big.Int).Sub(shares, big.NewInt(1)))
	return num.Div(num, shares)
}

// scaleDecimals 在不同小数精度之间换算整数金额，降精度时向下取整。
func scaleDecimals(value *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(value)
	if from == to {
		return out
	}
	if to > from {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil)
		return out.Mul(out, factor)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil)
	return out.Div(out, factor)
}
