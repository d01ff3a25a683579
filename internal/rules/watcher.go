package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadableCatalog 可热替换的规则目录，读操作无锁
type ReloadableCatalog struct {
	cur atomic.Pointer[StaticCatalog]
}

// NewReloadableCatalog 以初始目录创建
func NewReloadableCatalog(initial *StaticCatalog) *ReloadableCatalog {
	if initial == nil {
		initial = Default()
	}
	c := &ReloadableCatalog{}
	c.cur.Store(initial)
	return c
}

func (c *ReloadableCatalog) Lookup(action string) (Rule, bool) {
	return c.cur.Load().Lookup(action)
}

func (c *ReloadableCatalog) All() []Rule {
	return c.cur.Load().All()
}

// Swap 替换当前目录
func (c *ReloadableCatalog) Swap(next *StaticCatalog) {
	if next == nil {
		return
	}
	c.cur.Store(next)
}

// Watch 监听规则文件，变更后重新加载；解析失败时保留旧规则。
// 阻塞直到 ctx 结束。
func (c *ReloadableCatalog) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听失败: %w", err)
	}
	defer w.Close()

	// 监听目录而非文件，兼容编辑器的原子替换写法
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("监听规则目录失败: %w", err)
	}
	target := filepath.Clean(path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
				debounce = time.After(200 * time.Millisecond)
			}
		case <-debounce:
			debounce = nil
			next, err := LoadFile(path)
			if err != nil {
				slog.Warn("重新加载规则失败，保留旧规则", "path", path, "error", err)
				continue
			}
			c.Swap(next)
			slog.Info("规则目录已重新加载", "path", path, "count", len(next.All()))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("规则文件监听错误", "error", err)
		}
	}
}
