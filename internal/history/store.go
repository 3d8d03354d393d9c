// Package history 持久化用户操作记录：每一次投资、赎回连同策略、交易哈希
// 与失败原因都会落一条记录，供审计与前端查询。
package history

import (
	"context"
	"errors"
)

// Status 标识一次操作的最终结果。
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Action 标识操作类型。
type Action string

const (
	ActionInvest Action = "invest"
	ActionRedeem Action = "redeem"
)

// Record 是一条操作记录。金额字段保存人类可读的十进制字符串。
type Record struct {
	ID           string `json:"id"`
	Bundle       string `json:"bundle"`
	Action       Action `json:"action"`
	Strategy     string `json:"strategy"`
	InputToken   string `json:"input_token,omitempty"`
	InputAmount  string `json:"input_amount,omitempty"`
	Shares       string `json:"shares,omitempty"`
	MinShares    string `json:"min_shares,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	Atomic       bool   `json:"atomic"`
	Approvals    int    `json:"approvals"`
	Status       Status `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// ListOptions 过滤操作记录查询。
type ListOptions struct {
	Bundle string
	Action Action
	Limit  int
	Offset int
}

func (o *ListOptions) applyDefaults() {
	if o.Limit <= 0 || o.Limit > 500 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// ErrRecordConflict 表示操作 ID 重复。
var ErrRecordConflict = errors.New("操作记录已存在")

// Store 抽象了操作记录的持久化接口。
type Store interface {
	Append(ctx context.Context, record *Record) error
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Close() error
}
