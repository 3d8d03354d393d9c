package bundle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func validSnapshot() *BundleSnapshot {
	return &BundleSnapshot{
		Address: common.HexToAddress("0x01"),
		Name:    "DeFi Blue Chips",
		Symbol:  "DBC",
		NAV:     big.NewInt(2e18),
		Components: []ComponentSpec{
			{Token: TokenRef{Address: common.HexToAddress("0xa1"), Symbol: "WETH", Decimals: 18}, WeightBps: 6000},
			{Token: TokenRef{Address: common.HexToAddress("0xa2"), Symbol: "USDC", Decimals: 6}, WeightBps: 4000},
		},
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := validSnapshot().Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	empty := validSnapshot()
	empty.Components = nil
	if err := empty.Validate(); err == nil {
		t.Fatal("snapshot without components should fail validation")
	}

	skewed := validSnapshot()
	skewed.Components[0].WeightBps = 5000
	if err := skewed.Validate(); err == nil {
		t.Fatal("weights not summing to 10000 bps should fail validation")
	}

	flat := validSnapshot()
	flat.NAV = big.NewInt(0)
	if err := flat.Validate(); err == nil {
		t.Fatal("non-positive nav should fail validation")
	}
}

func TestTokenRefIsNative(t *testing.T) {
	if !(TokenRef{}).IsNative() {
		t.Fatal("zero address should be native")
	}
	if (TokenRef{Address: common.HexToAddress("0x01")}).IsNative() {
		t.Fatal("non-zero address should not be native")
	}
}
