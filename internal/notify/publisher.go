// Package notify 把完成的用户操作以事件形式发布给下游系统（对账、推送、
// 风控）。发布是尽力而为的：事件丢失不影响链上结果，但会记录告警日志。
package notify

import (
	"context"
	"encoding/json"
)

// ActionEvent 是一条操作完成事件，随操作记录同构。
type ActionEvent struct {
	ActionID string `json:"action_id"`
	Bundle   string `json:"bundle"`
	Action   string `json:"action"`
	Strategy string `json:"strategy"`
	TxHash   string `json:"tx_hash,omitempty"`
	Status   string `json:"status"`
	Atomic   bool   `json:"atomic"`
	At       int64  `json:"at"`
}

// Encode 序列化事件体。
func (e ActionEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher 发布操作事件。
type Publisher interface {
	Publish(ctx context.Context, event ActionEvent) error
	Close() error
}
