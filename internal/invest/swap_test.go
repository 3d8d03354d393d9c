package invest

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/oracle"

	"github.com/ethereum/go-ethereum/common"
)

var routerAddress = common.HexToAddress("0x0000000000000000000000000000000000000d01")

func newAssembler(t *testing.T, backend *fakeBackend) *SwapAssembler {
	tokens := bundle.NewResolver(nil, backend, nil)
	signer := newTestSigner(t, backend, false)
	return NewSwapAssembler(backend, oracle.NewRouter(routerAddress, backend),
		NewAllowanceManager(tokens), signer, time.Minute)
}

func TestAcquireComponentsSwapsMissingComponents(t *testing.T) {
	reader := newRoutedReader()
	// 铸造 1 份需要 1 WETH 与 200 USDC；输入代币是 USDC。
	reader.on("getRequiredAmounts(uint256)", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(200e6)}))
	// 1 WETH 的换币成本报价为 300 USDC。
	reader.on("getAmountsOut(uint256,address[])", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(300e6)}))
	reader.on("allowance(address,address)", encodeWord(big.NewInt(0)))
	backend := newFakeBackend(reader)
	assembler := newAssembler(t, backend)

	err := assembler.AcquireComponents(context.Background(), twoComponentSnapshot(),
		usdcRef(), mustAmount(t, "1000", 6), big.NewInt(1e18))
	if err != nil {
		t.Fatalf("acquire components: %v", err)
	}
	// 一笔路由授权加一笔 WETH 换币；USDC 成分由输入本身覆盖，不经过换币。
	if len(backend.sent) != 2 {
		t.Fatalf("sent = %d txs, want approve + swap", len(backend.sent))
	}
	if to := backend.sent[1].To(); to == nil || *to != routerAddress {
		t.Fatal("swap must target the router")
	}
}

func TestAcquireComponentsRejectsNativeInput(t *testing.T) {
	assembler := newAssembler(t, newFakeBackend(nil))
	native := bundle.TokenRef{Symbol: "ETH", Decimals: 18}

	err := assembler.AcquireComponents(context.Background(), twoComponentSnapshot(),
		native, mustAmount(t, "1", 18), big.NewInt(1e18))
	if !xerrors.IsCode(err, CodeStrategyUnsupported) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeStrategyUnsupported)
	}
}

func TestAcquireComponentsFailsWhenBudgetTooSmall(t *testing.T) {
	reader := newRoutedReader()
	reader.on("getRequiredAmounts(uint256)", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(200e6)}))
	reader.on("getAmountsOut(uint256,address[])", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(300e6)}))
	backend := newFakeBackend(reader)
	assembler := newAssembler(t, backend)

	// 100 USDC 连输入代币自身的成分需求都覆盖不了。
	err := assembler.AcquireComponents(context.Background(), twoComponentSnapshot(),
		usdcRef(), mustAmount(t, "100", 6), big.NewInt(1e18))
	if !xerrors.IsCode(err, CodeSwapFailed) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeSwapFailed)
	}
	if len(backend.sent) != 0 {
		t.Fatal("no transaction may be sent when the budget is insufficient")
	}
}

func TestAcquireComponentsAbortsWhenOneSwapReverts(t *testing.T) {
	reader := newRoutedReader()
	reader.on("getRequiredAmounts(uint256)", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(200e6)}))
	reader.on("getAmountsOut(uint256,address[])", encodeBigSlice([]*big.Int{big.NewInt(1e18), new(big.Int).Mul(big.NewInt(300), big.NewInt(1e18))}))
	reader.on("allowance(address,address)", encodeWord(big.NewInt(0)))
	backend := newFakeBackend(reader)
	// 输入是第三方代币，两个成分都要换币；其中一笔在链上回滚。
	backend.revertFirst("swapExactTokensForTokens(uint256,uint256,address[],address,uint256)")
	assembler := newAssembler(t, backend)

	dai := bundle.TokenRef{
		Address:  common.HexToAddress("0x00000000000000000000000000000000000000a3"),
		Symbol:   "DAI",
		Decimals: 18,
	}
	snapshot := twoComponentSnapshot()
	err := assembler.AcquireComponents(context.Background(), snapshot,
		dai, mustAmount(t, "1000", 18), big.NewInt(1e18))
	if !xerrors.IsCode(err, CodeSwapFailed) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeSwapFailed)
	}
	// 任一成分换币失败即整体失败：铸造调用绝不会跟进。
	for _, tx := range backend.sent {
		if tx.To() != nil && *tx.To() == snapshot.Address {
			t.Fatal("no call toward the bundle may follow a failed swap")
		}
	}
}

func TestAcquireComponentsSurfacesQuoteFailure(t *testing.T) {
	reader := newRoutedReader()
	reader.on("getRequiredAmounts(uint256)", encodeBigSlice([]*big.Int{big.NewInt(1e18), big.NewInt(200e6)}))
	reader.failOn("getAmountsOut(uint256,address[])", fmt.Errorf("路由不可达"))
	backend := newFakeBackend(reader)
	assembler := newAssembler(t, backend)

	err := assembler.AcquireComponents(context.Background(), twoComponentSnapshot(),
		usdcRef(), mustAmount(t, "1000", 6), big.NewInt(1e18))
	if !xerrors.IsCode(err, CodeQuoteUnavailable) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeQuoteUnavailable)
	}
	if len(backend.sent) != 0 {
		t.Fatal("quote failure must abort before any submission")
	}
}
