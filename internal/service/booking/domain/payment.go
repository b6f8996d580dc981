package domain

import "time"

type TransactionStatus string

const (
	TransactionCaptured TransactionStatus = "captured"
	TransactionReversed TransactionStatus = "reversed"
)

// PaymentTransaction 记录一次扣款，补偿时据此冲正。
// 以 CorrelationID 为键持久化，进程重启或多实例部署下仍可找到。
type PaymentTransaction struct {
	CorrelationID string
	TransactionID string
	Amount        int64
	Status        TransactionStatus
	CreatedAt     time.Time
	ReversedAt    *time.Time
}

func (t *PaymentTransaction) IsCaptured() bool {
	return t.Status == TransactionCaptured
}
