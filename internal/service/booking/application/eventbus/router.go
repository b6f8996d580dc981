package eventbus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/pkg/metrics"
	"medisaga/internal/service/booking/domain"
)

// Handler 处理一个事件。返回的错误只会被记录，不会传回发布方。
type Handler func(ctx context.Context, evt domain.Event) error

// Inbox 记录 (事件, 处理器) 的处理结果，用于抑制重复投递
type Inbox interface {
	IsProcessed(ctx context.Context, eventID, handler string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, handler string) error
}

type subscription struct {
	name    string
	handler Handler
}

// Router 是事件类型到处理器的订阅表，由组合根创建并注入
type Router struct {
	mu    sync.RWMutex
	subs  map[domain.EventType][]subscription
	inbox Inbox
}

// NewRouter inbox 为 nil 时不做去重
func NewRouter(inbox Inbox) *Router {
	return &Router{
		subs:  make(map[domain.EventType][]subscription),
		inbox: inbox,
	}
}

// Subscribe 同一事件类型可以有多个处理器，按注册顺序执行。
// 名称用于日志、指标和去重，同一事件类型下应唯一。
func (r *Router) Subscribe(eventType domain.EventType, name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[eventType] = append(r.subs[eventType], subscription{name: name, handler: handler})
}

// Handlers 返回某个事件类型下的处理器名称
func (r *Router) Handlers(eventType domain.EventType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.subs[eventType]))
	for _, s := range r.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

// Dispatch 依次调用所有处理器并等待完成。处理器的错误与 panic 都在这里被吸收。
// 返回实际执行的处理器数量（被去重跳过的不计入）。
func (r *Router) Dispatch(ctx context.Context, evt domain.Event) int {
	r.mu.RLock()
	subs := append([]subscription(nil), r.subs[evt.Type]...)
	r.mu.RUnlock()

	ctx = logger.WithCorrelationID(ctx, evt.CorrelationID)
	ran := 0
	for _, s := range subs {
		if r.seen(ctx, evt, s.name) {
			logger.Ctx(ctx).Debug().
				Str("event_id", evt.ID).
				Str("handler", s.name).
				Msg("Duplicate delivery skipped")
			continue
		}
		ran++
		if err := r.invoke(ctx, evt, s); err != nil {
			metrics.HandlerFailures.WithLabelValues(string(evt.Type), s.name).Inc()
			logger.Ctx(ctx).Error().Err(err).
				Str("event_type", string(evt.Type)).
				Str("handler", s.name).
				Msg("Event handler failed")
			continue
		}
		r.markProcessed(ctx, evt, s.name)
	}
	return ran
}

func (r *Router) invoke(ctx context.Context, evt domain.Event, s subscription) (err error) {
	start := time.Now()
	defer func() {
		metrics.HandlerDuration.WithLabelValues(string(evt.Type)).Observe(time.Since(start).Seconds())
		if p := recover(); p != nil {
			logger.Ctx(ctx).Error().
				Str("stack", string(debug.Stack())).
				Msgf("🚨 Handler %s panicked", s.name)
			err = fmt.Errorf("handler %s panicked: %v", s.name, p)
		}
	}()
	return s.handler(ctx, evt)
}

func (r *Router) seen(ctx context.Context, evt domain.Event, handler string) bool {
	if r.inbox == nil || evt.ID == "" {
		return false
	}
	done, err := r.inbox.IsProcessed(ctx, evt.ID, handler)
	if err != nil {
		// 查询失败时宁可重复执行，处理器本身有状态守卫
		logger.Ctx(ctx).Warn().Err(err).Str("handler", handler).Msg("Inbox lookup failed")
		return false
	}
	return done
}

func (r *Router) markProcessed(ctx context.Context, evt domain.Event, handler string) {
	if r.inbox == nil || evt.ID == "" {
		return
	}
	if err := r.inbox.MarkProcessed(ctx, evt.ID, handler); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("handler", handler).Msg("Inbox write failed")
	}
}
