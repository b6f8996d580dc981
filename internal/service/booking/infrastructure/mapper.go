package infrastructure

import (
	"encoding/json"

	"medisaga/internal/service/booking/domain"
)

// ToBookingModel 领域对象 -> 数据库模型，时间统一存 UTC
func ToBookingModel(b *domain.Booking) (*BookingModel, error) {
	services, err := json.Marshal(b.Services)
	if err != nil {
		return nil, err
	}
	return &BookingModel{
		CorrelationID:    b.CorrelationID,
		UserID:           b.UserID,
		CustomerName:     b.CustomerName,
		Gender:           string(b.Gender),
		DateOfBirth:      b.DateOfBirth,
		Services:         string(services),
		BasePrice:        b.BasePrice,
		DiscountEligible: b.DiscountEligible,
		DiscountApplied:  b.DiscountApplied,
		DiscountAmount:   b.DiscountAmount,
		FinalPrice:       b.FinalPrice,
		Status:           string(b.Status),
		ReferenceID:      b.ReferenceID,
		ErrorMessage:     b.ErrorMessage,
		QuotaDateKey:     b.QuotaDateKey,
		CreatedAt:        b.CreatedAt.UTC(),
		UpdatedAt:        b.UpdatedAt.UTC(),
	}, nil
}

// ToDomainBooking 数据库模型 -> 领域对象
func ToDomainBooking(m *BookingModel) (*domain.Booking, error) {
	var services []domain.ServiceItem
	if m.Services != "" {
		if err := json.Unmarshal([]byte(m.Services), &services); err != nil {
			return nil, err
		}
	}
	return &domain.Booking{
		CorrelationID:    m.CorrelationID,
		UserID:           m.UserID,
		CustomerName:     m.CustomerName,
		Gender:           domain.Gender(m.Gender),
		DateOfBirth:      m.DateOfBirth,
		Services:         services,
		BasePrice:        m.BasePrice,
		DiscountEligible: m.DiscountEligible,
		DiscountApplied:  m.DiscountApplied,
		DiscountAmount:   m.DiscountAmount,
		FinalPrice:       m.FinalPrice,
		Status:           domain.Status(m.Status),
		ReferenceID:      m.ReferenceID,
		ErrorMessage:     m.ErrorMessage,
		QuotaDateKey:     m.QuotaDateKey,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toSagaEventModel(r domain.SagaEventRecord) SagaEventModel {
	return SagaEventModel{
		EventID:       r.EventID,
		CorrelationID: r.CorrelationID,
		EventType:     string(r.EventType),
		Service:       r.Service,
		Status:        string(r.Status),
		Data:          string(r.Data),
		Timestamp:     r.Timestamp.UTC(),
	}
}

func toDomainSagaEvent(m SagaEventModel) domain.SagaEventRecord {
	return domain.SagaEventRecord{
		EventID:       m.EventID,
		CorrelationID: m.CorrelationID,
		EventType:     domain.EventType(m.EventType),
		Service:       m.Service,
		Status:        domain.EventStatus(m.Status),
		Data:          rawJSON(m.Data),
		Timestamp:     m.Timestamp,
	}
}

func toAuditLogModel(e domain.AuditLogEntry) AuditLogModel {
	return AuditLogModel{
		EventID:       e.EventID,
		CorrelationID: e.CorrelationID,
		EventType:     string(e.EventType),
		Service:       e.Service,
		Status:        string(e.Status),
		Data:          string(e.Data),
		ActorType:     string(e.ActorType),
		ActorID:       e.ActorID,
		ActionSource:  string(e.ActionSource),
		Timestamp:     e.Timestamp.UTC(),
	}
}

func toDomainAuditLog(m AuditLogModel) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		EventID:       m.EventID,
		CorrelationID: m.CorrelationID,
		EventType:     domain.EventType(m.EventType),
		Service:       m.Service,
		Status:        domain.EventStatus(m.Status),
		Data:          rawJSON(m.Data),
		ActorType:     domain.ActorType(m.ActorType),
		ActorID:       m.ActorID,
		ActionSource:  domain.ActionSource(m.ActionSource),
		Timestamp:     m.Timestamp,
	}
}

func toDomainMedicalService(m MedicalServiceModel) domain.MedicalService {
	return domain.MedicalService{
		ID:          m.ID,
		Name:        m.Name,
		Price:       m.Price,
		Gender:      domain.ServiceGender(m.Gender),
		Description: m.Description,
		IsActive:    m.IsActive,
	}
}

func toDomainTransaction(m *PaymentTransactionModel) *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		CorrelationID: m.CorrelationID,
		TransactionID: m.TransactionID,
		Amount:        m.Amount,
		Status:        domain.TransactionStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		ReversedAt:    m.ReversedAt,
	}
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}
