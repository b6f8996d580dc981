package port

import (
	"context"

	"medisaga/internal/service/booking/domain"
)

// EventPublisher 发布事件。返回 nil 表示事件已持久化并已交给传输层。
// actor 为 nil 时按事件类型使用默认操作者。
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event, service string, actor *domain.Actor) error
}
