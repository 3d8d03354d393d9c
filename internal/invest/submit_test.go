package invest

import (
	"context"
	"strings"
	"testing"

	xerrors "BundleHub-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

func sealedPlan(t *testing.T, approvals int) *TransactionPlan {
	t.Helper()
	plan := NewPlan()
	for i := 0; i < approvals; i++ {
		if err := plan.AddApproval(Call{
			Target:  common.HexToAddress("0x0000000000000000000000000000000000000c01"),
			Payload: []byte{0x09, 0x5e, 0xa7, 0xb3},
			Label:   "approve",
		}); err != nil {
			t.Fatalf("add approval: %v", err)
		}
	}
	if err := plan.Seal(Call{
		Target:  common.HexToAddress("0x0000000000000000000000000000000000000c02"),
		Payload: []byte{0x01},
		Label:   "mint",
	}); err != nil {
		t.Fatalf("seal: %v", err)
	}
	return plan
}

func TestPlannerSequentialSubmission(t *testing.T) {
	backend := newFakeBackend(nil)
	planner := NewPlanner(newTestSigner(t, backend, false))

	result, err := planner.Submit(context.Background(), sealedPlan(t, 2))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Atomic {
		t.Fatal("backend without batch support must submit sequentially")
	}
	if result.StepsCompleted != 3 {
		t.Fatalf("steps completed = %d, want 3", result.StepsCompleted)
	}
	if len(backend.sent) != 3 {
		t.Fatalf("sent = %d txs, want 3", len(backend.sent))
	}
	if result.TxHash != backend.sent[2].Hash() {
		t.Fatal("result hash must be the terminal transaction")
	}
	// 顺序提交必须使用连续的 nonce。
	for i, tx := range backend.sent {
		if tx.Nonce() != uint64(i) {
			t.Fatalf("tx %d nonce = %d, want %d", i, tx.Nonce(), i)
		}
	}
}

func TestPlannerSequentialFailureReportsStep(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.sendErrAt = 1
	planner := NewPlanner(newTestSigner(t, backend, false))

	_, err := planner.Submit(context.Background(), sealedPlan(t, 2))
	if err == nil {
		t.Fatal("expected submission failure")
	}
	if !xerrors.IsCode(err, CodeSubmissionFailed) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeSubmissionFailed)
	}
	// 错误必须指出失败的步骤以及此前已确认的授权数。
	if !strings.Contains(err.Error(), "第 2 步") || !strings.Contains(err.Error(), "1 笔授权") {
		t.Fatalf("error must name the failed step and confirmed approvals, got: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("sent = %d txs, want 1 before the failure", len(backend.sent))
	}
}

func TestPlannerAtomicSubmission(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.batch = true
	planner := NewPlanner(newTestSigner(t, backend, true))

	result, err := planner.Submit(context.Background(), sealedPlan(t, 2))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Atomic {
		t.Fatal("batch-capable backend with opt-in must submit atomically")
	}
	if len(backend.bundles) != 1 || len(backend.bundles[0]) != 3 {
		t.Fatalf("bundles = %d, want one bundle of 3 calls", len(backend.bundles))
	}
	if result.TxHash == (common.Hash{}) {
		t.Fatal("atomic submission must report a single bundle identifier")
	}
	// 原子路径绝不签发独立交易，整包由钱包端点一次性落地。
	if len(backend.sent) != 0 {
		t.Fatal("atomic path must not broadcast independent transactions")
	}
}

func TestPlannerAtomicRevertLeavesNoPartialState(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.batch = true
	backend.bundleRevert = true
	planner := NewPlanner(newTestSigner(t, backend, true))

	_, err := planner.Submit(context.Background(), sealedPlan(t, 2))
	if !xerrors.IsCode(err, CodeSubmissionFailed) {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), CodeSubmissionFailed)
	}
	// 整包回滚时不能有任何独立交易上链：授权绝不会先于失败的铸造生效。
	if len(backend.sent) != 0 {
		t.Fatalf("sent = %d independent txs, want none on atomic revert", len(backend.sent))
	}
	if len(backend.bundles) != 1 {
		t.Fatalf("bundles = %d, want exactly one attempt", len(backend.bundles))
	}
	if !strings.Contains(err.Error(), "整体回滚") {
		t.Fatalf("error must state the whole bundle reverted, got: %v", err)
	}
}

func TestPlannerAtomicOptOut(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.batch = true
	// 后端支持批量，但钱包未开启原子提交。
	planner := NewPlanner(newTestSigner(t, backend, false))

	result, err := planner.Submit(context.Background(), sealedPlan(t, 1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Atomic {
		t.Fatal("wallet opt-out must force sequential submission")
	}
}

func TestAtomicCapabilityProbedOnce(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.batch = true
	signer := newTestSigner(t, backend, true)

	if !signer.SupportsAtomicBatch() {
		t.Fatal("capability should be available")
	}
	// 会话中途后端能力变化不影响已缓存的探测结果。
	backend.mu.Lock()
	backend.batch = false
	backend.mu.Unlock()
	if !signer.SupportsAtomicBatch() {
		t.Fatal("capability must be probed once and cached for the session")
	}
}

func TestPlannerRejectsUnsealedPlan(t *testing.T) {
	planner := NewPlanner(newTestSigner(t, newFakeBackend(nil), false))

	plan := NewPlan()
	_ = plan.AddApproval(Call{Target: common.HexToAddress("0x01"), Payload: []byte{0x01}})
	if _, err := planner.Submit(context.Background(), plan); err == nil {
		t.Fatal("unsealed plan must be rejected")
	}
	if _, err := planner.Submit(context.Background(), nil); err == nil {
		t.Fatal("nil plan must be rejected")
	}
}
