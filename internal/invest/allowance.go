package invest

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/ledger"
	"BundleHub-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// AllowanceManager 生成幂等的授权调用：现有额度已覆盖所需金额时不产生任何
// 调用；原生币没有授权概念，同样直接跳过。授权金额与所需金额完全一致，不做
// 无限额度授权。
type AllowanceManager struct {
	tokens *bundle.Resolver
}

// NewAllowanceManager 构建授权管理器。
func NewAllowanceManager(tokens *bundle.Resolver) *AllowanceManager {
	return &AllowanceManager{tokens: tokens}
}

// EnsureAllowance 在需要时返回一笔授权调用，否则返回 nil。读取现有额度失败
// 按零额度保守处理，宁可多发一笔授权也不漏发。
func (m *AllowanceManager) EnsureAllowance(ctx context.Context, token bundle.TokenRef, owner, spender common.Address, required *big.Int) (*Call, error) {
	if required == nil || required.Sign() <= 0 {
		return nil, nil
	}
	if token.IsNative() {
		return nil, nil
	}

	current, err := m.tokens.Allowance(ctx, token.Address, owner, spender)
	if err != nil {
		logger.L().Warn("读取授权额度失败，按零额度处理",
			slog.String("token", token.Address.Hex()),
			slog.String("spender", spender.Hex()),
			slog.Any("error", err),
		)
		current = new(big.Int)
	}
	if current.Cmp(required) >= 0 {
		return nil, nil
	}

	payload, err := ledger.NewToken(token.Address, nil).ApprovePayload(spender, required)
	if err != nil {
		return nil, xerrors.Wrap(CodeAllowanceFailed, err,
			fmt.Sprintf("编码 %s 授权调用失败", token.Symbol))
	}
	return &Call{
		Target:  token.Address,
		Payload: payload,
		Label:   fmt.Sprintf("approve %s -> %s", token.Symbol, spender.Hex()),
	}, nil
}
