// Package rolecache 角色判定结果缓存。
// 进程内实现用于单实例，Redis 实现供多实例共享失效。
package rolecache

import (
	"context"
	"time"

	"github.com/yuqie6/xpforge/internal/schema"
)

// DefaultTTL 角色缓存默认有效期
const DefaultTTL = 24 * time.Hour

// Entry 缓存条目
type Entry struct {
	Role      schema.Role `json:"role"`
	CachedAt  time.Time   `json:"cached_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// NewEntry 以 now+ttl 为过期时间创建条目
func NewEntry(role schema.Role, now time.Time, ttl time.Duration) Entry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Entry{Role: role, CachedAt: now, ExpiresAt: now.Add(ttl)}
}

// Expired 是否已过期
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache 角色缓存抽象。Get 命中过期条目时应惰性删除并返回未命中。
type Cache interface {
	Get(ctx context.Context, userID string) (Entry, bool, error)
	Set(ctx context.Context, userID string, entry Entry) error
	Invalidate(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}
