// internal/service/booking/domain/event_type.go
package domain

// EventType 是事件总线上的事件名称，也是消息队列上的线协议的一部分
type EventType string

// Saga 事件
const (
	EventBookingRequested      EventType = "BookingRequested"
	EventPricingCalculated     EventType = "PricingCalculated"
	EventDiscountQuotaReserved EventType = "DiscountQuotaReserved"
	EventDiscountQuotaRejected EventType = "DiscountQuotaRejected"
	EventPaymentCompleted      EventType = "PaymentCompleted"
	EventPaymentFailed         EventType = "PaymentFailed"
	EventBookingConfirmed      EventType = "BookingConfirmed"
	EventBookingFailed         EventType = "BookingFailed"
	EventCompensationTriggered EventType = "CompensationTriggered"
	EventDiscountQuotaReleased EventType = "DiscountQuotaReleased"
	EventPaymentReversed       EventType = "PaymentReversed"
)

// 管理事件，与 Saga 共用同一条总线和审计日志
const (
	EventAdminAuthenticated   EventType = "AdminAuthenticated"
	EventDiscountQuotaUpdated EventType = "DiscountQuotaUpdated"
	EventAdminActionLogged    EventType = "AdminActionLogged"
)

// EventStatus 事件在审计日志中的分类
type EventStatus string

const (
	EventStatusSuccess      EventStatus = "success"
	EventStatusFailure      EventStatus = "failure"
	EventStatusCompensation EventStatus = "compensation"
)

type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorUser   ActorType = "user"
	ActorAdmin  ActorType = "admin"
)

type ActionSource string

const (
	SourceSaga       ActionSource = "saga"
	SourceAdminPanel ActionSource = "admin-panel"
	SourceCLI        ActionSource = "cli"
	SourceAPI        ActionSource = "api"
)

type eventClass struct {
	saga   bool
	status EventStatus
}

// eventClasses 是唯一的事件分类表，总线和查询层都从这里取分类结果
var eventClasses = map[EventType]eventClass{
	EventBookingRequested:      {saga: true, status: EventStatusSuccess},
	EventPricingCalculated:     {saga: true, status: EventStatusSuccess},
	EventDiscountQuotaReserved: {saga: true, status: EventStatusSuccess},
	EventDiscountQuotaRejected: {saga: true, status: EventStatusFailure},
	EventPaymentCompleted:      {saga: true, status: EventStatusSuccess},
	EventPaymentFailed:         {saga: true, status: EventStatusFailure},
	EventBookingConfirmed:      {saga: true, status: EventStatusSuccess},
	EventBookingFailed:         {saga: true, status: EventStatusFailure},
	EventCompensationTriggered: {saga: true, status: EventStatusCompensation},
	EventDiscountQuotaReleased: {saga: true, status: EventStatusCompensation},
	EventPaymentReversed:       {saga: true, status: EventStatusCompensation},

	EventAdminAuthenticated:   {status: EventStatusSuccess},
	EventDiscountQuotaUpdated: {status: EventStatusSuccess},
	EventAdminActionLogged:    {status: EventStatusSuccess},
}

// Known 是否为已登记的事件类型
func (t EventType) Known() bool {
	_, ok := eventClasses[t]
	return ok
}

// IsSaga 是否为 Saga 事件（需要写入 saga 事件日志）
func (t EventType) IsSaga() bool {
	return eventClasses[t].saga
}

// IsAdmin 是否为管理事件
func (t EventType) IsAdmin() bool {
	c, ok := eventClasses[t]
	return ok && !c.saga
}

// Status 返回审计状态，未登记的类型按 success 处理
func (t EventType) Status() EventStatus {
	if c, ok := eventClasses[t]; ok {
		return c.status
	}
	return EventStatusSuccess
}

// DefaultActor 在发布方未显式指定操作者时使用
func (t EventType) DefaultActor() Actor {
	if t.IsAdmin() {
		return Actor{Type: ActorAdmin, Source: SourceAdminPanel}
	}
	return Actor{Type: ActorSystem, Source: SourceSaga}
}

// SagaEventTypes 按流程顺序返回全部 Saga 事件
func SagaEventTypes() []EventType {
	return []EventType{
		EventBookingRequested,
		EventPricingCalculated,
		EventDiscountQuotaReserved,
		EventDiscountQuotaRejected,
		EventPaymentCompleted,
		EventPaymentFailed,
		EventBookingConfirmed,
		EventBookingFailed,
		EventCompensationTriggered,
		EventDiscountQuotaReleased,
		EventPaymentReversed,
	}
}

// Actor 描述事件的发起者
type Actor struct {
	Type   ActorType
	ID     string
	Source ActionSource
}
