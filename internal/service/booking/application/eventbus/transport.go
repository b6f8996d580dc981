package eventbus

import (
	"context"
	"sync"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/domain"
)

// Transport 把已经持久化的事件交给处理器
type Transport interface {
	Deliver(ctx context.Context, evt domain.Event) error
	Name() string
}

type dispatchKey struct{}

// LocalTransport 进程内分发。
// 链路起点的事件与调用方的取消解耦：HTTP 请求结束或超时不会让 saga 停在中间状态。
// 处理器内部再发布的事件在同一个 goroutine 中同步分发，同一 correlation id 的事件保持因果顺序。
type LocalTransport struct {
	router *Router
	async  bool

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewLocalTransport async 为 true 时 Deliver 在后台运行整条链路后立即返回
func NewLocalTransport(router *Router, async bool) *LocalTransport {
	return &LocalTransport{router: router, async: async}
}

func (t *LocalTransport) Deliver(ctx context.Context, evt domain.Event) error {
	if ctx.Value(dispatchKey{}) != nil {
		t.router.Dispatch(ctx, evt)
		return nil
	}

	// 保留 trace 与日志字段，去掉取消与超时
	ctx = context.WithValue(context.WithoutCancel(ctx), dispatchKey{}, struct{}{})

	t.mu.Lock()
	if !t.async || t.stopped {
		t.mu.Unlock()
		t.router.Dispatch(ctx, evt)
		return nil
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		t.router.Dispatch(ctx, evt)
	}()
	return nil
}

func (t *LocalTransport) Name() string { return "local" }

// Start 满足 bootstrap.Worker
func (t *LocalTransport) Start(ctx context.Context) error { return nil }

// Stop 等待后台链路跑完。之后的投递改为同步执行。
func (t *LocalTransport) Stop(ctx context.Context) {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Ctx(ctx).Info().Msg("🛑 Local event dispatch drained.")
	case <-ctx.Done():
		logger.Ctx(ctx).Warn().Msg("🚨 Local event dispatch did not drain before shutdown deadline")
	}
}
