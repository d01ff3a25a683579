package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuqie6/xpforge/internal/eventbus"
	"github.com/yuqie6/xpforge/internal/rolecache"
	"github.com/yuqie6/xpforge/internal/schema"
	"golang.org/x/sync/errgroup"
)

// RoleDetector 根据组织结构判定 IC / MANAGER，结果按用户缓存
type RoleDetector struct {
	org         OrgDirectory
	cache       rolecache.Cache
	events      eventbus.Publisher
	ttl         time.Duration
	batchSize   int
	parallelism int
	now         func() time.Time
}

// NewRoleDetector 创建角色判定器；cache 为空时使用进程内缓存
func NewRoleDetector(org OrgDirectory, cache rolecache.Cache, events eventbus.Publisher, settings Settings) *RoleDetector {
	s := settings.withDefaults()
	if cache == nil {
		cache = rolecache.NewMemory(0, s.RoleCacheTTL, s.Now)
	}
	return &RoleDetector{
		org:         org,
		cache:       cache,
		events:      events,
		ttl:         s.RoleCacheTTL,
		batchSize:   s.RoleBatchSize,
		parallelism: s.RoleParallelism,
		now:         s.Now,
	}
}

// DetectRole 判定单个用户角色，优先读缓存
func (d *RoleDetector) DetectRole(ctx context.Context, userID string) (schema.Role, error) {
	if userID == "" {
		return "", invalidField("user_id", "不能为空")
	}
	entry, ok, err := d.cache.Get(ctx, userID)
	if err != nil {
		// 缓存不可用时直接回源
		slog.Warn("读取角色缓存失败", "user", userID, "error", err)
	} else if ok {
		slog.Debug("角色缓存命中", "user", userID, "role", entry.Role)
		return entry.Role, nil
	}

	role, err := d.classify(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := d.cache.Set(ctx, userID, rolecache.NewEntry(role, d.now(), d.ttl)); err != nil {
		slog.Warn("写入角色缓存失败", "user", userID, "error", err)
	}
	return role, nil
}

// classify 任一条件成立即为 MANAGER，按查询成本从低到高短路
func (d *RoleDetector) classify(ctx context.Context, userID string) (schema.Role, error) {
	admin, err := d.org.IsAdmin(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("判定角色失败: %w", err)
	}
	if admin {
		return schema.RoleManager, nil
	}

	subs, err := d.org.CountSubordinateRules(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("判定角色失败: %w", err)
	}
	if subs > 0 {
		return schema.RoleManager, nil
	}

	teams, err := d.org.CountTeamRules(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("判定角色失败: %w", err)
	}
	if teams > 0 {
		return schema.RoleManager, nil
	}

	isManager, err := d.org.HasManagerMembership(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("判定角色失败: %w", err)
	}
	if isManager {
		return schema.RoleManager, nil
	}
	return schema.RoleIC, nil
}

// DetectRoles 批量判定，按 batchSize 分组依次处理，组内并发受 parallelism 限制
func (d *RoleDetector) DetectRoles(ctx context.Context, userIDs []string) (map[string]schema.Role, error) {
	unique := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	out := make(map[string]schema.Role, len(unique))
	var mu sync.Mutex

	for start := 0; start < len(unique); start += d.batchSize {
		end := start + d.batchSize
		if end > len(unique) {
			end = len(unique)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.parallelism)
		for _, id := range unique[start:end] {
			id := id
			g.Go(func() error {
				role, err := d.DetectRole(gctx, id)
				if err != nil {
					return err
				}
				mu.Lock()
				out[id] = role
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InvalidateRole 组织结构变化后强制重新判定
func (d *RoleDetector) InvalidateRole(ctx context.Context, userID string) error {
	if err := d.cache.Invalidate(ctx, userID); err != nil {
		return err
	}
	if d.events != nil {
		d.events.Publish(eventbus.Event{Type: eventbus.TypeRoleInvalidated, UserID: userID})
	}
	return nil
}

// InvalidateAll 重组等批量变化时清空缓存
func (d *RoleDetector) InvalidateAll(ctx context.Context) error {
	if err := d.cache.InvalidateAll(ctx); err != nil {
		return err
	}
	if d.events != nil {
		d.events.Publish(eventbus.Event{Type: eventbus.TypeRoleInvalidated, Data: map[string]any{"all": true}})
	}
	slog.Info("角色缓存已全部失效")
	return nil
}
