package rolecache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory 进程内缓存：LRU 限制条目数，条目自身的 ExpiresAt 决定有效性
type Memory struct {
	lru *expirable.LRU[string, Entry]
	now func() time.Time
}

// NewMemory 创建进程内缓存；maxEntries<=0 时不限数量
func NewMemory(maxEntries int, ttl time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		// LRU 自身的 TTL 只做兜底回收，比条目 TTL 略长
		lru: expirable.NewLRU[string, Entry](maxEntries, nil, ttl+time.Minute),
		now: now,
	}
}

func (m *Memory) Get(_ context.Context, userID string) (Entry, bool, error) {
	e, ok := m.lru.Get(userID)
	if !ok {
		return Entry{}, false, nil
	}
	if e.Expired(m.now()) {
		m.lru.Remove(userID)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Set(_ context.Context, userID string, entry Entry) error {
	m.lru.Add(userID, entry)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, userID string) error {
	m.lru.Remove(userID)
	return nil
}

func (m *Memory) InvalidateAll(_ context.Context) error {
	m.lru.Purge()
	return nil
}

// Len 当前条目数（含尚未惰性清理的过期条目）
func (m *Memory) Len() int {
	return m.lru.Len()
}
