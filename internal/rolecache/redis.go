package rolecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "xpforge:role:"

// Redis 多实例共享的角色缓存，失效对所有实例立即可见
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisClient 建立连接并 ping
func NewRedisClient(ctx context.Context, opts RedisOptions) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr 不能为空")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping 失败: %w", err)
	}
	return rdb, nil
}

// NewRedis 基于已有客户端创建缓存
func NewRedis(rdb goredis.UniversalClient, keyPrefix string, now func() time.Time) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{rdb: rdb, prefix: keyPrefix, now: now}
}

func (r *Redis) key(userID string) string {
	return r.prefix + userID
}

func (r *Redis) Get(ctx context.Context, userID string) (Entry, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("读取角色缓存失败: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = r.rdb.Del(ctx, r.key(userID)).Err()
		return Entry{}, false, nil
	}
	if e.Expired(r.now()) {
		_ = r.rdb.Del(ctx, r.key(userID)).Err()
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *Redis) Set(ctx context.Context, userID string, entry Entry) error {
	ttl := entry.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("写入角色缓存失败: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("删除角色缓存失败: %w", err)
	}
	return nil
}

func (r *Redis) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("扫描角色缓存失败: %w", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("清空角色缓存失败: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
