package eventbus

import (
	"context"
	"sync"
	"time"
)

// 事件类型
const (
	TypeXPAwarded       = "xp_awarded"
	TypeXPReversed      = "xp_reversed"
	TypeLevelUp         = "level_up"
	TypeBadgeUnlocked   = "badge_unlocked"
	TypeRoleInvalidated = "role_invalidated"
	TypeSubmission      = "submission_resolved"
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	Workspace string         `json:"workspace_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher 发布端抽象，nil 实现安全
type Publisher interface {
	Publish(evt Event)
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，不阻塞账本写入
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
