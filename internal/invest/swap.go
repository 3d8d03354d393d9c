package invest

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/ledger"
	"BundleHub-Chain/internal/oracle"
	"BundleHub-Chain/internal/wallet"
	"BundleHub-Chain/internal/web3"
	"BundleHub-Chain/pkg/logger"

	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// DefaultSwapDeadline 是换币交易的默认链上有效期。
const DefaultSwapDeadline = 10 * time.Minute

// SwapAssembler 把单一输入代币换成精确组篮所需的各成分：按报价把输入预算
// 等比切分到各成分，逐成分执行换币，全部到位后才允许进入铸造。任一换币失败
// 即整体失败，铸造不会被提交。
type SwapAssembler struct {
	reader    web3.Reader
	router    *oracle.Router
	allowance *AllowanceManager
	signer    *wallet.Signer
	deadline  time.Duration
}

// NewSwapAssembler 构建换币组篮器。deadline 为零时使用默认有效期。
func NewSwapAssembler(reader web3.Reader, router *oracle.Router, allowance *AllowanceManager, signer *wallet.Signer, deadline time.Duration) *SwapAssembler {
	if deadline <= 0 {
		deadline = DefaultSwapDeadline
	}
	return &SwapAssembler{
		reader:    reader,
		router:    router,
		allowance: allowance,
		signer:    signer,
		deadline:  deadline,
	}
}

// AcquireComponents 用投入的 input 代币换取铸造 shares 份所需的全部成分。
// 成功返回后，签名账户持有每个成分至少 getRequiredAmounts 要求的数量。
func (a *SwapAssembler) AcquireComponents(ctx context.Context, snapshot *bundle.BundleSnapshot, input bundle.TokenRef, amount bundle.Amount, shares *big.Int) error {
	if input.IsNative() {
		return xerrors.New(CodeStrategyUnsupported, "原生币不支持换币组篮路径")
	}
	if a.router == nil {
		return xerrors.New(CodeQuoteUnavailable, "未配置换币路由，无法组篮")
	}

	required, err := ledger.NewBundle(snapshot.Address, a.reader).RequiredAmounts(ctx, shares)
	if err != nil {
		return fmt.Errorf("查询成分需求量失败: %w", err)
	}
	if len(required) != len(snapshot.Components) {
		return fmt.Errorf("成分需求量与成分列表长度不一致")
	}

	// 先按报价把每个成分的需求量折算成输入代币成本，再把输入预算等比切分。
	// 输入代币本身作为成分时直接从预算中扣除，不经过换币。
	budget := new(big.Int).Set(amount.Native)
	costs := make([]*big.Int, len(required))
	totalCost := new(big.Int)
	for i, component := range snapshot.Components {
		if required[i] == nil || required[i].Sign() == 0 {
			continue
		}
		if component.Token.Address == input.Address {
			budget.Sub(budget, required[i])
			continue
		}
		cost, err := a.router.Quote(ctx, required[i], component.Token.Address, input.Address)
		if err != nil {
			return xerrors.Wrap(CodeQuoteUnavailable, err,
				fmt.Sprintf("查询成分 %s 的换币报价失败", component.Token.Symbol))
		}
		costs[i] = cost
		totalCost.Add(totalCost, cost)
	}
	if budget.Sign() <= 0 {
		return xerrors.New(CodeSwapFailed, "投入金额不足以覆盖成分需求",
			xerrors.WithMetadata("input", amount.Human),
		)
	}
	if totalCost.Sign() == 0 {
		// 所有成分都由输入代币本身覆盖，无需换币。
		return nil
	}

	// 一次性授权路由使用全部换币预算，确认后再并发执行各成分的换币。
	approval, err := a.allowance.EnsureAllowance(ctx, input, a.signer.Address(), a.router.Address(), budget)
	if err != nil {
		return err
	}
	if approval != nil {
		if err := a.submitAndWait(ctx, *approval); err != nil {
			return xerrors.Wrap(CodeAllowanceFailed, err,
				fmt.Sprintf("授权路由使用 %s 失败", input.Symbol))
		}
	}

	deadline := big.NewInt(time.Now().Add(a.deadline).Unix())
	recipient := a.signer.Address()
	errs := make([]error, len(required))
	var wg sync.WaitGroup
	for i, component := range snapshot.Components {
		if costs[i] == nil {
			continue
		}
		swapIn := new(big.Int).Mul(budget, costs[i])
		swapIn.Div(swapIn, totalCost)
		wg.Add(1)
		go func(i int, component bundle.ComponentSpec, swapIn *big.Int) {
			defer wg.Done()
			payload, err := a.router.SwapPayload(swapIn, required[i], input.Address, component.Token.Address, recipient, deadline)
			if err != nil {
				errs[i] = fmt.Errorf("编码 %s 换币调用失败: %w", component.Token.Symbol, err)
				return
			}
			if err := a.submitAndWait(ctx, Call{
				Target:  a.router.Address(),
				Payload: payload,
				Label:   fmt.Sprintf("swap %s->%s", input.Symbol, component.Token.Symbol),
			}); err != nil {
				errs[i] = fmt.Errorf("换取成分 %s 失败: %w", component.Token.Symbol, err)
				return
			}
			logger.L().Info("成分换币完成",
				slog.String("bundle", snapshot.Symbol),
				slog.String("component", component.Token.Symbol),
				slog.String("amount_in", swapIn.String()),
				slog.String("min_out", required[i].String()),
			)
		}(i, component, swapIn)
	}
	wg.Wait()

	var failed []string
	var cause error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, snapshot.Components[i].Token.Symbol)
			cause = err
		}
	}
	if cause != nil {
		return xerrors.Wrap(CodeSwapFailed, cause,
			fmt.Sprintf("成分换币失败: %s", strings.Join(failed, ", ")),
			xerrors.WithMetadata("failed_components", strings.Join(failed, ",")),
		)
	}
	return nil
}

// submitAndWait 发送一笔独立交易并等待确认，回滚视为失败。
func (a *SwapAssembler) submitAndWait(ctx context.Context, call Call) error {
	hash, err := a.signer.Submit(ctx, wallet.Call{Target: call.Target, Value: call.Value, Payload: call.Payload})
	if err != nil {
		return err
	}
	receipt, err := a.signer.WaitMined(ctx, hash)
	if err != nil {
		return err
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return fmt.Errorf("交易 %s 在链上回滚", hash.Hex())
	}
	return nil
}
