package invest

import (
	"math/big"

	"BundleHub-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Call 是计划中的一步链上调用，Label 用于日志与失败步骤定位。
type Call struct {
	Target  common.Address
	Value   *big.Int
	Payload []byte
	Label   string
}

func (c Call) walletCall() wallet.Call {
	return wallet.Call{Target: c.Target, Value: c.Value, Payload: c.Payload}
}

// TransactionPlan 是一次操作的有序调用计划：零或多笔授权，最后一笔终结调用
// （铸造或赎回）。计划被 Seal 之后不可再追加授权，保证授权永远排在终结调用
// 之前。
type TransactionPlan struct {
	ID     string
	calls  []Call
	sealed bool
}

// NewPlan 创建一个空的调用计划并分配操作 ID。
func NewPlan() *TransactionPlan {
	return &TransactionPlan{ID: uuid.NewString()}
}

// AddApproval 在终结调用之前追加一笔授权调用。
func (p *TransactionPlan) AddApproval(call Call) error {
	if p.sealed {
		return errPlanSealed
	}
	p.calls = append(p.calls, call)
	return nil
}

// Seal 追加终结调用并封闭计划。
func (p *TransactionPlan) Seal(terminal Call) error {
	if p.sealed {
		return errPlanSealed
	}
	p.calls = append(p.calls, terminal)
	p.sealed = true
	return nil
}

// Sealed 报告计划是否已封闭。
func (p *TransactionPlan) Sealed() bool { return p.sealed }

// Calls 返回计划内调用的副本。
func (p *TransactionPlan) Calls() []Call {
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Len 返回计划内的调用总数。
func (p *TransactionPlan) Len() int { return len(p.calls) }

// Approvals 返回终结调用之前的授权数量。
func (p *TransactionPlan) Approvals() int {
	if !p.sealed {
		return len(p.calls)
	}
	return len(p.calls) - 1
}

var errPlanSealed = planSealedError{}

type planSealedError struct{}

func (planSealedError) Error() string { return "调用计划已封闭，不能再追加调用" }
