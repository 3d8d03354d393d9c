// Package oracle exposes the swap router as a price-quote service. Quotes are
// estimation only: final settlement amounts always come from the bundle
// ledger's own required-amounts call, never from the router.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"BundleHub-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const routerABIJSON = `[
  {"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

var routerABIOnce = sync.OnceValues(func() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("解析 router ABI 失败: %w", err)
	}
	return parsed, nil
})

// Quoter answers value-estimation questions for one token pair.
type Quoter interface {
	Quote(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error)
}

// Router binds the swap router contract used both for quotes and for
// building swap payloads.
type Router struct {
	address common.Address
	reader  web3.Reader
}

// NewRouter binds the router contract at the given address.
func NewRouter(address common.Address, reader web3.Reader) *Router {
	return &Router{address: address, reader: reader}
}

// Address returns the router contract address.
func (r *Router) Address() common.Address { return r.address }

// Quote returns the amount of tokenOut the router would currently pay for
// amountIn of tokenIn. Identical in/out tokens short-circuit to the input.
func (r *Router) Quote(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if tokenIn == tokenOut {
		return new(big.Int).Set(amountIn), nil
	}
	routerABI, err := routerABIOnce()
	if err != nil {
		return nil, err
	}
	payload, err := routerABI.Pack("getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, fmt.Errorf("编码 getAmountsOut 失败: %w", err)
	}
	raw, err := r.reader.CallContract(ctx, gethcore.CallMsg{To: &r.address, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("查询报价失败: %w", err)
	}
	values, err := routerABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("解码报价失败: %w", err)
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("报价返回值不完整")
	}
	return amounts[len(amounts)-1], nil
}

// SwapPayload encodes a swapExactTokensForTokens call routing amountIn of
// tokenIn into at least minOut of tokenOut, delivered to the recipient
// before the deadline.
func (r *Router) SwapPayload(amountIn, minOut *big.Int, tokenIn, tokenOut, recipient common.Address, deadline *big.Int) ([]byte, error) {
	routerABI, err := routerABIOnce()
	if err != nil {
		return nil, err
	}
	return routerABI.Pack("swapExactTokensForTokens", amountIn, minOut, []common.Address{tokenIn, tokenOut}, recipient, deadline)
}
