package ledger

import (
	"context"
	"fmt"
	"math/big"

	"BundleHub-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the sentinel token address standing in for the chain's
// native currency. It has no contract behind it: balance reads go through
// the backend directly and the allowance concept does not apply.
var NativeAddress = common.Address{}

// IsNative reports whether the address is the native currency sentinel.
func IsNative(address common.Address) bool {
	return address == NativeAddress
}

// Token wraps one ERC-20 token contract.
type Token struct {
	address common.Address
	reader  web3.Reader
}

// NewToken binds an ERC-20 contract at the given address.
func NewToken(address common.Address, reader web3.Reader) *Token {
	return &Token{address: address, reader: reader}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// Symbol reads the token's display symbol.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	contractABI, err := erc20ABI()
	if err != nil {
		return "", err
	}
	return viewString(ctx, t.reader, contractABI, t.address, "symbol")
}

// Decimals reads the token's declared decimal precision. The call is
// best-effort against external contracts; callers fall back to 18 when it
// fails.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	contractABI, err := erc20ABI()
	if err != nil {
		return 0, err
	}
	values, err := view(ctx, t.reader, contractABI, t.address, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals 返回值类型不符")
	}
	return decimals, nil
}

// BalanceOf reads an account's token balance in native units.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	contractABI, err := erc20ABI()
	if err != nil {
		return nil, err
	}
	return viewBig(ctx, t.reader, contractABI, t.address, "balanceOf", owner)
}

// Allowance reads the amount the spender may transfer from the owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	contractABI, err := erc20ABI()
	if err != nil {
		return nil, err
	}
	return viewBig(ctx, t.reader, contractABI, t.address, "allowance", owner, spender)
}

// ApprovePayload encodes an approve(spender, amount) call.
func (t *Token) ApprovePayload(spender common.Address, amount *big.Int) ([]byte, error) {
	contractABI, err := erc20ABI()
	if err != nil {
		return nil, err
	}
	return contractABI.Pack("approve", spender, amount)
}
