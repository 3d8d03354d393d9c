package invest

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"

	"BundleHub-Chain/internal/bundle"

	"github.com/ethereum/go-ethereum/common"
)

// newRoutedBundleBackend 搭建一条可以完整走通快照、估算与提交的假链：
// 两成分 bundle（WETH 6000 / USDC 4000），净值 2，最小申购单位 1 份。
func newRoutedBundleBackend() *fakeBackend {
	reader := newRoutedReader()
	bundleAddr := twoComponentSnapshot().Address
	reader.on("name()", encodeString("Dual Basket"))
	reader.onAt(bundleAddr, "symbol()", encodeString("DBC"))
	reader.on("totalSupply()", encodeWord(big.NewInt(5e18)))
	reader.on("nav()", encodeWord(big.NewInt(2e18)))
	reader.on("creationUnit()", encodeWord(big.NewInt(1e18)))
	reader.on("getComponents()", encodeComponents(
		[]common.Address{wethAddress, usdcAddress}, []int64{6000, 4000}))
	reader.on("balanceOf(address)", encodeWord(big.NewInt(0)))
	reader.onAt(wethAddress, "decimals()", encodeWord(big.NewInt(18)))
	reader.onAt(usdcAddress, "decimals()", encodeWord(big.NewInt(6)))
	reader.onAt(wethAddress, "symbol()", encodeString("WETH"))
	reader.onAt(usdcAddress, "symbol()", encodeString("USDC"))
	reader.on("allowance(address,address)", encodeWord(new(big.Int).Lsh(big.NewInt(1), 200)))
	reader.on("getRequiredAmounts(uint256)", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(200e6)}))
	reader.on("getAmountsOut(uint256,address[])", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(300e6)}))
	return newFakeBackend(reader)
}

func newTestService(t *testing.T, backend *fakeBackend) *Service {
	t.Helper()
	resolver := bundle.NewResolver(nil, backend, nil)
	view := bundle.NewView(backend, resolver)
	signer := newTestSigner(t, backend, false)
	service, err := NewService(ServiceConfig{
		Router:          routerAddress,
		PricingToken:    usdcAddress,
		PricingDecimals: 6,
	}, backend, view, signer, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestInvestFallsBackToSwapWhenDirectMintUnsupported(t *testing.T) {
	backend := newRoutedBundleBackend()
	// 合约没有 mintFromSingle 入口：节点在广播时报选择器无法识别。
	backend.failSendOn("mintFromSingle(address,uint256,uint256)",
		fmt.Errorf("execution reverted: function selector was not recognized"))
	service := newTestService(t, backend)

	bundleAddr := twoComponentSnapshot().Address
	result, err := service.Invest(context.Background(), InvestRequest{
		Bundle:      bundleAddr.Hex(),
		InputToken:  usdcAddress.Hex(),
		InputAmount: "1000",
	})
	if err != nil {
		t.Fatalf("invest must fall back without surfacing an error, got: %v", err)
	}
	if result.Strategy != string(StrategySingleViaSwap) {
		t.Fatalf("strategy = %s, want %s", result.Strategy, StrategySingleViaSwap)
	}
	if result.Shares != "500" {
		t.Fatalf("shares = %s, want 500 (estimate floored to whole creation units)", result.Shares)
	}

	// 落链顺序：WETH 换币打给路由，随后精确组篮铸造打给 bundle。
	var swapSeen, mintSeen bool
	for _, tx := range backend.sent {
		if tx.To() == nil || len(tx.Data()) < 4 {
			continue
		}
		selector := hex.EncodeToString(tx.Data()[:4])
		switch {
		case *tx.To() == routerAddress && selector == sel("swapExactTokensForTokens(uint256,uint256,address[],address,uint256)"):
			swapSeen = true
		case *tx.To() == bundleAddr && selector == sel("mintExactBasket(uint256)"):
			mintSeen = true
		case *tx.To() == bundleAddr:
			t.Fatalf("unexpected bundle call with selector %s", selector)
		}
	}
	if !swapSeen || !mintSeen {
		t.Fatalf("fallback must swap then mint the exact basket, swap=%v mint=%v", swapSeen, mintSeen)
	}
}

func TestInvestSurfacesBusinessRevertWithoutFallback(t *testing.T) {
	backend := newRoutedBundleBackend()
	// 普通业务回滚不属于"合约不支持"，绝不触发换币组篮降级。
	backend.failSendOn("mintFromSingle(address,uint256,uint256)",
		fmt.Errorf("execution reverted: insufficient input amount"))
	service := newTestService(t, backend)

	_, err := service.Invest(context.Background(), InvestRequest{
		Bundle:      twoComponentSnapshot().Address.Hex(),
		InputToken:  usdcAddress.Hex(),
		InputAmount: "1000",
	})
	if err == nil {
		t.Fatal("business revert must surface unchanged")
	}
	for _, tx := range backend.sent {
		if tx.To() != nil && *tx.To() == routerAddress {
			t.Fatal("business revert must not trigger the swap fallback")
		}
	}
}
