package invest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/ledger"
	"BundleHub-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// Strategy 标识一次铸造/赎回采用的执行路径。
type Strategy string

const (
	StrategyExactBasket   Strategy = "exact_basket"
	StrategySingleDirect  Strategy = "single_direct"
	StrategySingleViaSwap Strategy = "single_via_swap"
	StrategyRedeemBasket  Strategy = "redeem_basket"
	StrategyRedeemSingle  Strategy = "redeem_single"
)

// Selector 把一次操作请求编译为调用计划。它只产出计划，不做任何提交。
type Selector struct {
	reader    web3.Reader
	tokens    *bundle.Resolver
	allowance *AllowanceManager
}

// NewSelector 构建策略选择器。
func NewSelector(reader web3.Reader, tokens *bundle.Resolver, allowance *AllowanceManager) *Selector {
	return &Selector{reader: reader, tokens: tokens, allowance: allowance}
}

// BuildExactBasket 构造精确组篮铸造计划：向账本查询每个成分的精确需求量，
// 为余额不足额度的成分追加授权，最后封入 mintExactBasket。
func (s *Selector) BuildExactBasket(ctx context.Context, snapshot *bundle.BundleSnapshot, owner common.Address, shares *big.Int) (*TransactionPlan, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, xerrors.New(bundle.CodeInvalidAmount, "铸造份额必须大于零")
	}
	if snapshot.CreationUnit != nil && shares.Cmp(snapshot.CreationUnit) < 0 {
		return nil, xerrors.New(CodeBelowMinimum,
			fmt.Sprintf("铸造份额低于最小申购单位 %s", bundle.ToHuman(snapshot.CreationUnit, bundle.NativeDecimals)))
	}

	contract := ledger.NewBundle(snapshot.Address, s.reader)
	required, err := contract.RequiredAmounts(ctx, shares)
	if err != nil {
		return nil, fmt.Errorf("查询成分需求量失败: %w", err)
	}
	if len(required) != len(snapshot.Components) {
		return nil, fmt.Errorf("成分需求量与成分列表长度不一致")
	}

	plan := NewPlan()
	for i, component := range snapshot.Components {
		approval, err := s.allowance.EnsureAllowance(ctx, component.Token, owner, snapshot.Address, required[i])
		if err != nil {
			return nil, err
		}
		if approval != nil {
			if err := plan.AddApproval(*approval); err != nil {
				return nil, err
			}
		}
	}

	payload, err := contract.MintExactBasketPayload(shares)
	if err != nil {
		return nil, fmt.Errorf("编码 mintExactBasket 失败: %w", err)
	}
	if err := plan.Seal(Call{
		Target:  snapshot.Address,
		Payload: payload,
		Label:   fmt.Sprintf("mintExactBasket %s", snapshot.Symbol),
	}); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildSingleDirect 构造单币直投计划：一笔输入代币授权（按需），封入
// mintFromSingle。输入为原生币时不产生授权。
func (s *Selector) BuildSingleDirect(ctx context.Context, snapshot *bundle.BundleSnapshot, owner common.Address, input bundle.TokenRef, amount bundle.Amount, minShares *big.Int) (*TransactionPlan, error) {
	plan := NewPlan()
	approval, err := s.allowance.EnsureAllowance(ctx, input, owner, snapshot.Address, amount.Native)
	if err != nil {
		return nil, err
	}
	if approval != nil {
		if err := plan.AddApproval(*approval); err != nil {
			return nil, err
		}
	}

	value := new(big.Int)
	if input.IsNative() {
		value = new(big.Int).Set(amount.Native)
	}
	payload, err := ledger.NewBundle(snapshot.Address, s.reader).MintFromSinglePayload(input.Address, amount.Native, minShares)
	if err != nil {
		return nil, fmt.Errorf("编码 mintFromSingle 失败: %w", err)
	}
	if err := plan.Seal(Call{
		Target:  snapshot.Address,
		Value:   value,
		Payload: payload,
		Label:   fmt.Sprintf("mintFromSingle %s<-%s", snapshot.Symbol, input.Symbol),
	}); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildRedeem 构造赎回计划。output 为 nil 时按成分篮赎回，否则赎回为单一
// 代币。赎回不区分直投/换币路径，也不需要授权（销毁自身份额）。
func (s *Selector) BuildRedeem(ctx context.Context, snapshot *bundle.BundleSnapshot, shares *big.Int, output *bundle.TokenRef, minOut *big.Int) (*TransactionPlan, Strategy, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, "", xerrors.New(bundle.CodeInvalidAmount, "赎回份额必须大于零")
	}
	if snapshot.UserShares != nil && shares.Cmp(snapshot.UserShares) > 0 {
		return nil, "", xerrors.New(bundle.CodeInvalidAmount,
			fmt.Sprintf("赎回份额超过持有量 %s", bundle.ToHuman(snapshot.UserShares, bundle.NativeDecimals)))
	}

	contract := ledger.NewBundle(snapshot.Address, s.reader)
	plan := NewPlan()

	if output == nil {
		payload, err := contract.RedeemForBasketPayload(shares)
		if err != nil {
			return nil, "", fmt.Errorf("编码 redeemForBasket 失败: %w", err)
		}
		if err := plan.Seal(Call{
			Target:  snapshot.Address,
			Payload: payload,
			Label:   fmt.Sprintf("redeemForBasket %s", snapshot.Symbol),
		}); err != nil {
			return nil, "", err
		}
		return plan, StrategyRedeemBasket, nil
	}

	if minOut == nil {
		minOut = new(big.Int)
	}
	payload, err := contract.RedeemForSinglePayload(shares, output.Address, minOut)
	if err != nil {
		return nil, "", fmt.Errorf("编码 redeemForSingle 失败: %w", err)
	}
	if err := plan.Seal(Call{
		Target:  snapshot.Address,
		Payload: payload,
		Label:   fmt.Sprintf("redeemForSingle %s->%s", snapshot.Symbol, output.Symbol),
	}); err != nil {
		return nil, "", err
	}
	return plan, StrategyRedeemSingle, nil
}

// unsupportedMarkers 是节点在合约缺少对应函数时常见的错误表述。普通的业务
// 回滚（金额不足等）不在其中，绝不触发策略降级。
var unsupportedMarkers = []string{
	"function selector was not recognized",
	"function selector not recognized",
	"method not found",
	"unrecognized selector",
	"is not a function",
	"not supported",
}

// IsStrategyUnsupported 判断错误是否属于"合约不支持该函数"一类，只有这类
// 错误允许从单币直投降级到换币组篮。
func IsStrategyUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if xerrors.IsCode(err, CodeStrategyUnsupported) {
		return true
	}
	message := strings.ToLower(errorChainMessage(err))
	for _, marker := range unsupportedMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func errorChainMessage(err error) string {
	var sb strings.Builder
	for err != nil {
		sb.WriteString(err.Error())
		sb.WriteString(" | ")
		err = errors.Unwrap(err)
	}
	return sb.String()
}
