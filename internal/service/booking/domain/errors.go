package domain

import "errors"

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInvalidTransition   = errors.New("invalid booking status transition")
	ErrInvalidBooking      = errors.New("invalid booking request")
	ErrServiceNotFound     = errors.New("medical service not found")
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrInvalidArgument     = errors.New("invalid argument")
)
