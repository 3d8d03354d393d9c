package ledger

import (
	"context"
	"math/big"

	"BundleHub-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Component mirrors one entry of the bundle contract's component list:
// the token address and its target weight in basis points.
type Component struct {
	Token  common.Address
	Weight *big.Int
}

// Bundle wraps one deployed bundle contract. All methods are stateless
// reads or pure payload builders; the struct holds no mutable state.
type Bundle struct {
	address common.Address
	reader  web3.Reader
}

// NewBundle binds a bundle contract at the given address.
func NewBundle(address common.Address, reader web3.Reader) *Bundle {
	return &Bundle{address: address, reader: reader}
}

// Address returns the bundle contract address.
func (b *Bundle) Address() common.Address { return b.address }

// Name reads the bundle's display name.
func (b *Bundle) Name(ctx context.Context) (string, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return "", err
	}
	return viewString(ctx, b.reader, contractABI, b.address, "name")
}

// Symbol reads the bundle's ticker symbol.
func (b *Bundle) Symbol(ctx context.Context) (string, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return "", err
	}
	return viewString(ctx, b.reader, contractABI, b.address, "symbol")
}

// TotalSupply reads the outstanding share supply in native units.
func (b *Bundle) TotalSupply(ctx context.Context) (*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBig(ctx, b.reader, contractABI, b.address, "totalSupply")
}

// NAV reads the net asset value per share, scaled to 18 decimals.
func (b *Bundle) NAV(ctx context.Context) (*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBig(ctx, b.reader, contractABI, b.address, "nav")
}

// Creator reads the bundle creator address.
func (b *Bundle) Creator(ctx context.Context) (common.Address, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := view(ctx, b.reader, contractABI, b.address, "creator")
	if err != nil {
		return common.Address{}, err
	}
	addr, _ := values[0].(common.Address)
	return addr, nil
}

// CreationUnit reads the minimum number of shares mintable in one call.
func (b *Bundle) CreationUnit(ctx context.Context) (*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBig(ctx, b.reader, contractABI, b.address, "creationUnit")
}

// Components reads the target allocation list.
func (b *Bundle) Components(ctx context.Context) ([]Component, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	values, err := view(ctx, b.reader, contractABI, b.address, "getComponents")
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(values[0], new([]struct {
		Token  common.Address `json:"token"`
		Weight *big.Int       `json:"weight"`
	})).(*[]struct {
		Token  common.Address `json:"token"`
		Weight *big.Int       `json:"weight"`
	})
	components := make([]Component, 0, len(raw))
	for _, entry := range raw {
		components = append(components, Component{Token: entry.Token, Weight: entry.Weight})
	}
	return components, nil
}

// ComponentBalances reads the held amount of each component, index-aligned
// with Components.
func (b *Bundle) ComponentBalances(ctx context.Context) ([]*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBigSlice(ctx, b.reader, contractABI, b.address, "getComponentBalances")
}

// RequiredAmounts returns the native amount of each component needed to mint
// the given share count, index-aligned with Components. This is the
// settlement-grade source of truth; oracle quotes are estimation only.
func (b *Bundle) RequiredAmounts(ctx context.Context, shares *big.Int) ([]*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBigSlice(ctx, b.reader, contractABI, b.address, "getRequiredAmounts", shares)
}

// RedeemAmounts returns the component amounts paid out for redeeming the
// given share count.
func (b *Bundle) RedeemAmounts(ctx context.Context, shares *big.Int) ([]*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBigSlice(ctx, b.reader, contractABI, b.address, "getRedeemAmounts", shares)
}

// BalanceOf reads an account's share balance.
func (b *Bundle) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return viewBig(ctx, b.reader, contractABI, b.address, "balanceOf", account)
}

// MintExactBasketPayload encodes a mintExactBasket(shares) call.
func (b *Bundle) MintExactBasketPayload(shares *big.Int) ([]byte, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return contractABI.Pack("mintExactBasket", shares)
}

// MintFromSinglePayload encodes a mintFromSingle(inputToken, inputAmount, minShares) call.
func (b *Bundle) MintFromSinglePayload(inputToken common.Address, inputAmount, minShares *big.Int) ([]byte, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return contractABI.Pack("mintFromSingle", inputToken, inputAmount, minShares)
}

// RedeemForBasketPayload encodes a redeemForBasket(shares) call.
func (b *Bundle) RedeemForBasketPayload(shares *big.Int) ([]byte, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return contractABI.Pack("redeemForBasket", shares)
}

// RedeemForSinglePayload encodes a redeemForSingle(shares, outputToken, minOut) call.
func (b *Bundle) RedeemForSinglePayload(shares *big.Int, outputToken common.Address, minOut *big.Int) ([]byte, error) {
	contractABI, err := bundleABI()
	if err != nil {
		return nil, err
	}
	return contractABI.Pack("redeemForSingle", shares, outputToken, minOut)
}
