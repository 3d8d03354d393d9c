package notify

import (
	"context"
	"sync"
)

// MemoryPublisher 把事件留在进程内存里，用于开发与测试。
type MemoryPublisher struct {
	mu     sync.Mutex
	events []ActionEvent
}

// NewMemoryPublisher 创建内存版事件发布器。
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish 记录事件。
func (p *MemoryPublisher) Publish(_ context.Context, event ActionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events 返回已发布事件的副本。
func (p *MemoryPublisher) Events() []ActionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ActionEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close 实现 Publisher 接口。
func (p *MemoryPublisher) Close() error { return nil }

var _ Publisher = (*MemoryPublisher)(nil)
