package saga

import (
	"medisaga/internal/service/booking/application/eventbus"
	"medisaga/internal/service/booking/domain"
)

// Steps 组合根构造好的各个步骤服务
type Steps struct {
	Booking      *BookingService
	Pricing      *PricingService
	Quota        *DiscountQuotaService
	Payment      *PaymentService
	Confirmation *ConfirmationService
	Admin        *AdminService
	Audit        *AuditTrail
}

type route struct {
	event   domain.EventType
	name    string
	handler eventbus.Handler
}

// RegisterChoreography 把事件类型与处理器绑定。
// CompensationTriggered 先冲正支付、再释放名额，释放名额的处理器最后把预约标记为失败。
func RegisterChoreography(r *eventbus.Router, s Steps) {
	routes := []route{
		{domain.EventBookingRequested, "pricing.booking-requested", s.Pricing.HandleBookingRequested},
		{domain.EventPricingCalculated, "quota.pricing-calculated", s.Quota.HandlePricingCalculated},
		{domain.EventDiscountQuotaReserved, "payment.quota-reserved", s.Payment.HandleDiscountQuotaReserved},
		{domain.EventPaymentCompleted, "confirmation.payment-completed", s.Confirmation.HandlePaymentCompleted},
		{domain.EventCompensationTriggered, "payment.compensation", s.Payment.HandleCompensationTriggered},
		{domain.EventCompensationTriggered, "quota.compensation", s.Quota.HandleCompensationTriggered},
		{domain.EventBookingFailed, "booking.booking-failed", s.Booking.HandleBookingFailed},
		{domain.EventDiscountQuotaUpdated, "admin.quota-updated", s.Admin.HandleDiscountQuotaUpdated},
	}
	for _, rt := range routes {
		r.Subscribe(rt.event, rt.name, rt.handler)
	}

	if s.Audit != nil {
		for _, t := range domain.SagaEventTypes() {
			r.Subscribe(t, "audit.trail", s.Audit.HandleAnyEvent)
		}
	}
}
