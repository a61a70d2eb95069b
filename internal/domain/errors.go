package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidName       = errors.New("invalid report name")
	ErrNoData            = errors.New("no data")
	ErrSourceUnavailable = errors.New("source store unavailable")
	ErrStoreCorrupt      = errors.New("event store corrupt")
	ErrRecoveryFailed    = errors.New("recovery failed")
	ErrAggregation       = errors.New("aggregation error")
	ErrPersistence       = errors.New("persistence error")
)
