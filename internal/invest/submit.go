package invest

import (
	"context"
	"fmt"
	"log/slog"

	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/wallet"
	"BundleHub-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// SubmissionResult 描述一次计划提交的结果。TxHash 是终结调用的交易哈希；
// 原子模式下整包只有一个标识，没有终结交易哈希时直接返回该标识。
type SubmissionResult struct {
	TxHash common.Hash
	Atomic bool
	// StepsCompleted 是链上确认成功的调用数，成功时等于计划长度。
	StepsCompleted int
}

// Planner 把封闭的调用计划交给签名代理：后端支持时整批原子提交，否则逐笔
// 提交并等待每笔确认后再发下一笔。
type Planner struct {
	signer *wallet.Signer
}

// NewPlanner 构建提交计划器。
func NewPlanner(signer *wallet.Signer) *Planner {
	return &Planner{signer: signer}
}

// Submit 提交整个计划。顺序模式下任一步失败即停止，错误中携带失败步骤序号
// 与已确认的授权笔数；原子模式下整批一起成败。
func (p *Planner) Submit(ctx context.Context, plan *TransactionPlan) (*SubmissionResult, error) {
	if plan == nil || !plan.Sealed() || plan.Len() == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "调用计划为空或未封闭")
	}
	calls := plan.Calls()

	if p.signer.SupportsAtomicBatch() {
		return p.submitAtomic(ctx, plan.ID, calls)
	}
	return p.submitSequential(ctx, plan.ID, calls)
}

func (p *Planner) submitAtomic(ctx context.Context, planID string, calls []Call) (*SubmissionResult, error) {
	walletCalls := make([]wallet.Call, 0, len(calls))
	for _, call := range calls {
		walletCalls = append(walletCalls, call.walletCall())
	}
	id, err := p.signer.SubmitAtomic(ctx, walletCalls)
	if err != nil {
		return nil, xerrors.Wrap(CodeSubmissionFailed, err, "原子调用包提交失败",
			xerrors.WithMetadata("plan_id", planID),
		)
	}
	receipt, err := p.signer.WaitBundle(ctx, id)
	if err != nil {
		return nil, xerrors.Wrap(CodeSubmissionFailed, err, "等待原子调用包确认失败",
			xerrors.WithMetadata("plan_id", planID),
			xerrors.WithMetadata("bundle_id", id.Hex()),
		)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		// 原子语义：整包回滚，授权与终结调用都未生效。
		return nil, xerrors.New(CodeSubmissionFailed, "原子调用包在链上整体回滚，所有步骤均未生效",
			xerrors.WithMetadata("plan_id", planID),
			xerrors.WithMetadata("bundle_id", id.Hex()),
			xerrors.WithMetadata("approvals_confirmed", "0"),
		)
	}
	terminal := receipt.TxHash
	if terminal == (common.Hash{}) {
		terminal = id
	}
	logger.L().Info("调用计划已原子提交",
		slog.String("plan_id", planID),
		slog.Int("calls", len(calls)),
		slog.String("tx_hash", terminal.Hex()),
	)
	return &SubmissionResult{TxHash: terminal, Atomic: true, StepsCompleted: len(calls)}, nil
}

func (p *Planner) submitSequential(ctx context.Context, planID string, calls []Call) (*SubmissionResult, error) {
	var terminal common.Hash
	for i, call := range calls {
		// 取消只阻止尚未发出的调用，已上链的交易无法撤回。
		select {
		case <-ctx.Done():
			return nil, p.stepFailure(planID, i, call, ctx.Err())
		default:
		}

		hash, err := p.signer.Submit(ctx, call.walletCall())
		if err != nil {
			return nil, p.stepFailure(planID, i, call, err)
		}
		receipt, err := p.signer.WaitMined(ctx, hash)
		if err != nil {
			return nil, p.stepFailure(planID, i, call, err)
		}
		if receipt.Status != coretypes.ReceiptStatusSuccessful {
			return nil, p.stepFailure(planID, i, call,
				fmt.Errorf("交易 %s 在链上回滚", hash.Hex()))
		}
		terminal = hash
		logger.L().Info("计划步骤已确认",
			slog.String("plan_id", planID),
			slog.Int("step", i),
			slog.String("label", call.Label),
			slog.String("tx_hash", hash.Hex()),
		)
	}
	return &SubmissionResult{TxHash: terminal, Atomic: false, StepsCompleted: len(calls)}, nil
}

// stepFailure 构造顺序提交的失败错误：指明失败的步骤与此前已确认的授权数。
func (p *Planner) stepFailure(planID string, step int, call Call, cause error) error {
	return xerrors.Wrap(CodeSubmissionFailed, cause,
		fmt.Sprintf("第 %d 步调用失败（%s），此前 %d 笔授权已确认", step+1, call.Label, step),
		xerrors.WithMetadata("plan_id", planID),
		xerrors.WithMetadata("failed_step", fmt.Sprintf("%d", step)),
		xerrors.WithMetadata("approvals_confirmed", fmt.Sprintf("%d", step)),
	)
}
