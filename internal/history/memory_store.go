package history

import (
	"context"
	"strings"
	"sync"
	"time"

	xerrors "BundleHub-Chain/internal/errors"
)

// MemoryStore 在进程内存中保存操作记录，主要用于开发与测试。
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	byID    map[string]struct{}
}

// NewMemoryStore 创建内存版操作记录存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]struct{})}
}

// Append 追加一条记录。
func (s *MemoryStore) Append(_ context.Context, record *Record) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "操作记录 ID 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[record.ID]; exists {
		return ErrRecordConflict
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	clone := *record
	s.records = append(s.records, &clone)
	s.byID[record.ID] = struct{}{}
	return nil
}

// List 按时间倒序返回匹配的记录。
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Record, error) {
	opts.applyDefaults()
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if opts.Bundle != "" && !strings.EqualFold(record.Bundle, opts.Bundle) {
			continue
		}
		if opts.Action != "" && record.Action != opts.Action {
			continue
		}
		matched = append(matched, record)
	}

	if opts.Offset >= len(matched) {
		return []*Record{}, nil
	}
	matched = matched[opts.Offset:]
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	out := make([]*Record, 0, len(matched))
	for _, record := range matched {
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}

// Close 实现 Store 接口，无资源需要释放。
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
