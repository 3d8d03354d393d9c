package invest

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

type fakeQuoter struct {
	out   *big.Int
	err   error
	calls int
}

func (q *fakeQuoter) Quote(_ context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	if q.out != nil {
		return new(big.Int).Set(q.out), nil
	}
	return new(big.Int).Set(amountIn), nil
}

var (
	usdcAddress = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	wethAddress = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

func usdcRef() bundle.TokenRef {
	return bundle.TokenRef{Address: usdcAddress, Symbol: "USDC", Decimals: 6}
}

func testSnapshot(nav, creationUnit int64) *bundle.BundleSnapshot {
	return &bundle.BundleSnapshot{
		Address:      common.HexToAddress("0x01"),
		Symbol:       "DBC",
		NAV:          big.NewInt(nav),
		CreationUnit: big.NewInt(creationUnit),
		Components: []bundle.ComponentSpec{
			{Token: bundle.TokenRef{Address: wethAddress, Symbol: "WETH", Decimals: 18}, WeightBps: 10000},
		},
	}
}

func mustAmount(t *testing.T, human string, decimals uint8) bundle.Amount {
	t.Helper()
	amount, err := bundle.NewAmount(human, decimals)
	if err != nil {
		t.Fatalf("amount %q: %v", human, err)
	}
	return amount
}

func TestEstimateBelowMinimumSuggestsViableInput(t *testing.T) {
	// NAV 2.0, minimum one full share: 1 USDC only buys 0.5 shares, the
	// error must tell the user 2 USDC would be enough.
	estimator := NewEstimator(nil, usdcAddress, 6, 0)
	snapshot := testSnapshot(2e18, 1e18)

	_, err := estimator.Estimate(context.Background(), snapshot, usdcRef(), mustAmount(t, "1", 6), 0)
	if err == nil {
		t.Fatal("expected below-minimum error")
	}
	if !xerrors.IsCode(err, CodeBelowMinimum) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeBelowMinimum)
	}
	if !strings.Contains(err.Error(), "2 USDC") {
		t.Fatalf("error should name the minimum viable input, got: %v", err)
	}
}

func TestEstimateAppliesSlippageBuffer(t *testing.T) {
	estimator := NewEstimator(nil, usdcAddress, 6, 0)
	snapshot := testSnapshot(2e18, 1e18)

	estimate, err := estimator.Estimate(context.Background(), snapshot, usdcRef(), mustAmount(t, "4", 6), 0)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if estimate.Shares.String() != "2000000000000000000" {
		t.Fatalf("shares = %s, want 2e18", estimate.Shares)
	}
	// Default buffer is 200 bps: 2.0 shares * 0.98 = 1.96.
	if estimate.MinShares.String() != "1960000000000000000" {
		t.Fatalf("min shares = %s, want 1.96e18", estimate.MinShares)
	}
	if estimate.Approximate {
		t.Fatal("pricing-token input must not be approximate")
	}
}

func TestEstimateCustomSlippage(t *testing.T) {
	estimator := NewEstimator(nil, usdcAddress, 6, 0)
	snapshot := testSnapshot(1e18, 1e18)

	estimate, err := estimator.Estimate(context.Background(), snapshot, usdcRef(), mustAmount(t, "10", 6), 500)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if estimate.MinShares.String() != "9500000000000000000" {
		t.Fatalf("min shares = %s, want 9.5e18", estimate.MinShares)
	}
	if estimate.SlippageBps != 500 {
		t.Fatalf("slippage = %d, want 500", estimate.SlippageBps)
	}
}

func TestEstimateDegradesWhenQuoteFails(t *testing.T) {
	quoter := &fakeQuoter{err: errors.New("router down")}
	estimator := NewEstimator(quoter, usdcAddress, 6, 0)
	snapshot := testSnapshot(1e18, 1e18)
	weth := bundle.TokenRef{Address: wethAddress, Symbol: "WETH", Decimals: 18}

	estimate, err := estimator.Estimate(context.Background(), snapshot, weth, mustAmount(t, "3", 18), 0)
	if err != nil {
		t.Fatalf("estimate should degrade, not fail: %v", err)
	}
	if !estimate.Approximate {
		t.Fatal("failed quote must mark the estimate approximate")
	}
	if quoter.calls != 1 {
		t.Fatalf("quoter calls = %d, want 1", quoter.calls)
	}
	if estimate.Shares.String() != "3000000000000000000" {
		t.Fatalf("face-value shares = %s, want 3e18", estimate.Shares)
	}
}

func TestEstimateUsesQuotedValue(t *testing.T) {
	// 1 WETH quoted at 2000 USDC, NAV 1.0: expect 2000 shares.
	quoter := &fakeQuoter{out: big.NewInt(2000e6)}
	estimator := NewEstimator(quoter, usdcAddress, 6, 0)
	snapshot := testSnapshot(1e18, 1e18)
	weth := bundle.TokenRef{Address: wethAddress, Symbol: "WETH", Decimals: 18}

	estimate, err := estimator.Estimate(context.Background(), snapshot, weth, mustAmount(t, "1", 18), 0)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if estimate.Approximate {
		t.Fatal("successful quote must not be approximate")
	}
	want := new(big.Int).Mul(big.NewInt(2000), big.NewInt(1e18))
	if estimate.Shares.Cmp(want) != 0 {
		t.Fatalf("shares = %s, want %s", estimate.Shares, want)
	}
}

func TestEstimateRejectsInvalidInput(t *testing.T) {
	estimator := NewEstimator(nil, usdcAddress, 6, 0)
	snapshot := testSnapshot(1e18, 1e18)

	if _, err := estimator.Estimate(context.Background(), snapshot, usdcRef(), bundle.Amount{Native: big.NewInt(0), Decimals: 6}, 0); err == nil {
		t.Fatal("zero amount should be rejected")
	}
	if _, err := estimator.Estimate(context.Background(), snapshot, usdcRef(), mustAmount(t, "1", 6), 10000); err == nil {
		t.Fatal("slippage of 10000 bps should be rejected")
	}

	flat := testSnapshot(0, 1e18)
	flat.NAV = big.NewInt(0)
	if _, err := estimator.Estimate(context.Background(), flat, usdcRef(), mustAmount(t, "1", 6), 0); !xerrors.IsCode(err, CodeQuoteUnavailable) {
		t.Fatalf("zero nav should be %s, got %v", CodeQuoteUnavailable, err)
	}
}
