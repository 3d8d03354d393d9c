package ledger

import (
	"context"
	"fmt"
	"math/big"

	"BundleHub-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// view executes a read-only contract call and unpacks the results.
func view(ctx context.Context, reader web3.Reader, contractABI abi.ABI, target common.Address, method string, args ...any) ([]any, error) {
	payload, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 调用失败: %w", method, err)
	}
	raw, err := reader.CallContract(ctx, gethcore.CallMsg{To: &target, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("调用 %s 失败: %w", method, err)
	}
	values, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("解码 %s 返回值失败: %w", method, err)
	}
	return values, nil
}

func viewBig(ctx context.Context, reader web3.Reader, contractABI abi.ABI, target common.Address, method string, args ...any) (*big.Int, error) {
	values, err := view(ctx, reader, contractABI, target, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s 返回了 %d 个值", method, len(values))
	}
	out, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s 返回值类型不符", method)
	}
	return out, nil
}

func viewString(ctx context.Context, reader web3.Reader, contractABI abi.ABI, target common.Address, method string) (string, error) {
	values, err := view(ctx, reader, contractABI, target, method)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%s 返回了 %d 个值", method, len(values))
	}
	out, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%s 返回值类型不符", method)
	}
	return out, nil
}

func viewBigSlice(ctx context.Context, reader web3.Reader, contractABI abi.ABI, target common.Address, method string, args ...any) ([]*big.Int, error) {
	values, err := view(ctx, reader, contractABI, target, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s 返回了 %d 个值", method, len(values))
	}
	out, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s 返回值类型不符", method)
	}
	return out, nil
}
