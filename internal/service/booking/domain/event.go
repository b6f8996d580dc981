// internal/service/booking/domain/event.go
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event 是总线上流转的事件信封。Data 保持原始 JSON，由订阅方按类型解码。
type Event struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlationId"`
	Type          EventType       `json:"eventType"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEvent 构造一个带唯一 ID 的事件
func NewEvent(correlationID string, eventType EventType, payload any) (Event, error) {
	if !eventType.Known() {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Type:          eventType,
		Data:          data,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Decode 将 Data 解码到具体的事件载荷
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s (%s) has no data", e.ID, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ---- Saga 事件载荷 ----

type BookingRequested struct {
	CustomerName string        `json:"customerName"`
	Gender       Gender        `json:"gender"`
	DateOfBirth  string        `json:"dateOfBirth"`
	Services     []ServiceItem `json:"services"`
	UserID       string        `json:"userId,omitempty"`
}

type PricingCalculated struct {
	BasePrice          int64   `json:"basePrice"`
	DiscountEligible   bool    `json:"discountEligible"`
	DiscountPercentage float64 `json:"discountPercentage"`
	DiscountAmount     int64   `json:"discountAmount"`
	FinalPrice         int64   `json:"finalPrice"`
	Reason             string  `json:"reason,omitempty"`
}

type DiscountQuotaReserved struct {
	DiscountApplied bool  `json:"discountApplied"`
	QuotaUsed       int64 `json:"quotaUsed"`
	QuotaLimit      int64 `json:"quotaLimit"`
}

type DiscountQuotaRejected struct {
	Reason string `json:"reason"`
}

type PaymentCompleted struct {
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transactionId"`
}

type PaymentFailed struct {
	Reason               string `json:"reason"`
	RequiresCompensation bool   `json:"requiresCompensation"`
}

type BookingConfirmed struct {
	ReferenceID     string `json:"referenceId"`
	FinalPrice      int64  `json:"finalPrice"`
	DiscountApplied bool   `json:"discountApplied"`
}

type BookingFailed struct {
	Reason               string `json:"reason"`
	CompensationExecuted bool   `json:"compensationExecuted"`
}

// CompensationTriggered.OriginalEvent 可能是 Saga 之外的检查点名称，例如 QuotaCheckRequested
type CompensationTriggered struct {
	OriginalEvent string `json:"originalEvent"`
	Reason        string `json:"reason"`
}

type DiscountQuotaReleased struct {
	Reason string `json:"reason"`
}

type PaymentReversed struct {
	TransactionID string `json:"transactionId,omitempty"`
	Reason        string `json:"reason"`
}

// ---- 管理事件载荷 ----

type AdminAuthenticated struct {
	AdminID string `json:"adminId"`
	Email   string `json:"email"`
	Action  string `json:"action"` // login | logout
}

type DiscountQuotaUpdated struct {
	AdminID       string `json:"adminId"`
	PreviousLimit int64  `json:"previousLimit"`
	NewLimit      int64  `json:"newLimit"`
	Reason        string `json:"reason,omitempty"`
}

type AdminActionLogged struct {
	AdminID  string         `json:"adminId"`
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Details  map[string]any `json:"details,omitempty"`
}

// ---- 持久化记录 ----

// SagaEventRecord 是 saga 事件日志中的一行，只追加不修改
type SagaEventRecord struct {
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId"`
	EventType     EventType       `json:"eventType"`
	Service       string          `json:"service"`
	Status        EventStatus     `json:"status"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AuditLogEntry 覆盖所有事件（saga 与管理事件）
type AuditLogEntry struct {
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId"`
	EventType     EventType       `json:"event"`
	Service       string          `json:"service"`
	Status        EventStatus     `json:"status"`
	Data          json.RawMessage `json:"data"`
	ActorType     ActorType       `json:"actorType"`
	ActorID       string          `json:"actorId,omitempty"`
	ActionSource  ActionSource    `json:"actionSource"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AuditLogFilter 审计日志查询条件
type AuditLogFilter struct {
	ActorType     ActorType
	ActionSource  ActionSource
	CorrelationID string
	From          time.Time
	Limit         int
}
