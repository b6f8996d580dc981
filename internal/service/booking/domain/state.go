// internal/service/booking/domain/state.go
package domain

// Status 定义了预约的生命周期状态
type Status string

const (
	StatusPending           Status = "pending"            // 请求已受理，等待定价
	StatusPricingCalculated Status = "pricing_calculated" // 已计算基础价格与折扣资格
	StatusQuotaReserved     Status = "quota_reserved"     // 折扣名额已决定（预留成功或无需折扣）
	StatusQuotaRejected     Status = "quota_rejected"     // 当日折扣名额已耗尽
	StatusPaymentCompleted  Status = "payment_completed"  // 支付成功，等待最终确认
	StatusPaymentFailed     Status = "payment_failed"     // 支付失败
	StatusConfirmed         Status = "confirmed"          // 终态：成功
	StatusFailed            Status = "failed"             // 终态：失败
)

// IsTerminal 判断状态是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Valid 判断是否是已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPricingCalculated, StatusQuotaReserved, StatusQuotaRejected,
		StatusPaymentCompleted, StatusPaymentFailed, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}
