package invest

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"

	"BundleHub-Chain/internal/bundle"
)

func allowanceManager(reader *routedReader) *AllowanceManager {
	return NewAllowanceManager(bundle.NewResolver(nil, reader, nil))
}

func TestEnsureAllowanceSkipsWhenCovered(t *testing.T) {
	reader := newRoutedReader()
	reader.on("allowance(address,address)", encodeWord(big.NewInt(1000)))
	manager := allowanceManager(reader)

	call, err := manager.EnsureAllowance(context.Background(), usdcRef(),
		testOwner, testSpender, big.NewInt(500))
	if err != nil {
		t.Fatalf("ensure allowance: %v", err)
	}
	if call != nil {
		t.Fatal("sufficient allowance must not produce an approval call")
	}
}

func TestEnsureAllowanceEmitsExactApproval(t *testing.T) {
	reader := newRoutedReader()
	reader.on("allowance(address,address)", encodeWord(big.NewInt(100)))
	manager := allowanceManager(reader)

	required := big.NewInt(500)
	call, err := manager.EnsureAllowance(context.Background(), usdcRef(),
		testOwner, testSpender, required)
	if err != nil {
		t.Fatalf("ensure allowance: %v", err)
	}
	if call == nil {
		t.Fatal("insufficient allowance must produce an approval call")
	}
	if call.Target != usdcAddress {
		t.Fatalf("approval target = %s, want token", call.Target.Hex())
	}
	approveSel, _ := hex.DecodeString(sel("approve(address,uint256)"))
	if !bytes.HasPrefix(call.Payload, approveSel) {
		t.Fatal("payload must be an approve call")
	}
	// 授权金额与所需金额完全一致，不做无限额度授权。
	if !bytes.HasSuffix(call.Payload, encodeWord(required)) {
		t.Fatal("approval must be for the exact required amount")
	}
}

func TestEnsureAllowanceNativeAndZero(t *testing.T) {
	manager := allowanceManager(newRoutedReader())
	native := bundle.TokenRef{Symbol: "ETH", Decimals: 18}

	if call, err := manager.EnsureAllowance(context.Background(), native,
		testOwner, testSpender, big.NewInt(100)); err != nil || call != nil {
		t.Fatalf("native token must skip approvals, got %v/%v", call, err)
	}
	if call, err := manager.EnsureAllowance(context.Background(), usdcRef(),
		testOwner, testSpender, big.NewInt(0)); err != nil || call != nil {
		t.Fatalf("zero requirement must skip approvals, got %v/%v", call, err)
	}
}

func TestEnsureAllowanceTreatsReadFailureAsZero(t *testing.T) {
	reader := newRoutedReader()
	reader.failOn("allowance(address,address)", fmt.Errorf("节点超时"))
	manager := allowanceManager(reader)

	call, err := manager.EnsureAllowance(context.Background(), usdcRef(),
		testOwner, testSpender, big.NewInt(500))
	if err != nil {
		t.Fatalf("ensure allowance: %v", err)
	}
	if call == nil {
		t.Fatal("unreadable allowance must be treated as zero and produce an approval")
	}
}
