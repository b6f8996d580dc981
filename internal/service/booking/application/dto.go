package application

import (
	"time"

	"medisaga/internal/service/booking/domain"
	"medisaga/internal/service/booking/domain/port"
)

// CreateBookingRequest 是创建预约用例的输入
type CreateBookingRequest struct {
	CustomerName string   `json:"customerName" validate:"required,max=255"`
	Gender       string   `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth  string   `json:"dateOfBirth" validate:"required"`
	ServiceIDs   []string `json:"serviceIds" validate:"required,min=1,dive,required"`
	UserID       string   `json:"userId,omitempty" validate:"omitempty,max=64"`
}

type CreateBookingResponse struct {
	Success       bool   `json:"success"`
	CorrelationID string `json:"correlationId"`
	Message       string `json:"message"`
}

// BookingView 预约的对外视图
type BookingView struct {
	CorrelationID    string               `json:"correlationId"`
	UserID           string               `json:"userId,omitempty"`
	CustomerName     string               `json:"customerName"`
	Gender           domain.Gender        `json:"gender"`
	DateOfBirth      string               `json:"dateOfBirth"`
	Services         []domain.ServiceItem `json:"services"`
	BasePrice        int64                `json:"basePrice"`
	DiscountEligible bool                 `json:"discountEligible"`
	DiscountApplied  bool                 `json:"discountApplied"`
	DiscountAmount   int64                `json:"discountAmount"`
	FinalPrice       int64                `json:"finalPrice"`
	Status           domain.Status        `json:"status"`
	ReferenceID      string               `json:"referenceId,omitempty"`
	ErrorMessage     string               `json:"errorMessage,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

func ToBookingView(b *domain.Booking) BookingView {
	return BookingView{
		CorrelationID:    b.CorrelationID,
		UserID:           b.UserID,
		CustomerName:     b.CustomerName,
		Gender:           b.Gender,
		DateOfBirth:      b.DateOfBirth,
		Services:         b.Services,
		BasePrice:        b.BasePrice,
		DiscountEligible: b.DiscountEligible,
		DiscountApplied:  b.DiscountApplied,
		DiscountAmount:   b.DiscountAmount,
		FinalPrice:       b.FinalPrice,
		Status:           b.Status,
		ReferenceID:      b.ReferenceID,
		ErrorMessage:     b.ErrorMessage,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// BookingStatusResponse 预约、按时间排序的 saga 事件以及是否已到终态
type BookingStatusResponse struct {
	Booking    BookingView              `json:"booking"`
	Events     []domain.SagaEventRecord `json:"events"`
	IsComplete bool                     `json:"isComplete"`
}

type QuotaStatusResponse struct {
	Date      string `json:"date"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Available int64  `json:"available"`
	Exhausted bool   `json:"exhausted"`
}

func ToQuotaStatus(s port.QuotaSnapshot) QuotaStatusResponse {
	return QuotaStatusResponse{
		Date:      s.DateKey,
		Used:      s.Used,
		Limit:     s.Limit,
		Available: s.Available(),
		Exhausted: s.Exhausted(),
	}
}

type DiscountConfigResponse struct {
	DiscountPercentage float64 `json:"discountPercentage"`
}

type UpdateDiscountRequest struct {
	DiscountPercentage *float64 `json:"discountPercentage" validate:"required,gte=0,lte=100"`
}

type UpdateQuotaRequest struct {
	NewLimit *int64 `json:"newLimit" validate:"required,gte=0"`
	Reason   string `json:"reason,omitempty" validate:"max=512"`
}

type UpdateQuotaResponse struct {
	Success       bool   `json:"success"`
	PreviousLimit int64  `json:"previousLimit"`
	NewLimit      int64  `json:"newLimit"`
	Message       string `json:"message"`
}

// AdminAuthEventRequest 外部认证系统上报的登录登出
type AdminAuthEventRequest struct {
	AdminID string `json:"adminId" validate:"required,max=64"`
	Email   string `json:"email" validate:"omitempty,email"`
	Action  string `json:"action" validate:"required,oneof=login logout"`
}

// AuditLogQuery 审计日志查询条件，零值表示不过滤
type AuditLogQuery struct {
	ActorType    string
	ActionSource string
	From         time.Time
	Limit        int
}

type StatsResponse struct {
	Quota          QuotaStatusResponse   `json:"quota"`
	ByStatus       map[string]int64      `json:"byStatus"`
	TodayBookings  int64                 `json:"todayBookings"`
	TodayDiscounts int64                 `json:"todayDiscounts"`
	QuotaHistory   []QuotaStatusResponse `json:"quotaHistory"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Bus      string `json:"bus"`
}
