package models

import "strings"

// Status is the persisted booking status.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusCanceled Status = "CANCELED"
)

// IsNegative reports whether the status hides a booking from current/next displays.
func (s Status) IsNegative() bool {
	return s == StatusRejected || s == StatusCanceled
}

// NegativeStatuses returns the statuses excluded from last/next aggregation.
func NegativeStatuses() []Status {
	return []Status{StatusRejected, StatusCanceled}
}

// State is a view selector for booking lists, never persisted.
type State string

const (
	StateAll      State = "ALL"
	StateCurrent  State = "CURRENT"
	StateFuture   State = "FUTURE"
	StatePast     State = "PAST"
	StateWaiting  State = "WAITING"
	StateRejected State = "REJECTED"
)

var states = []State{StateAll, StateCurrent, StateFuture, StatePast, StateWaiting, StateRejected}

// ParseState matches raw case-insensitively. An empty string means ALL.
func ParseState(raw string) (State, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StateAll, true
	}
	for _, s := range states {
		if strings.EqualFold(string(s), raw) {
			return s, true
		}
	}
	return "", false
}

const (
	// DefaultPageSize размер страницы списков по умолчанию
	DefaultPageSize = 10

	// DefaultCreateLimit количество заявок, которое пользователь может создать в окне
	DefaultCreateLimit = 20

	// DefaultCreateWindow окно квоты на создание заявок
	DefaultCreateWindow = 60 * 60 // 1 час в секундах

	// HealthCheckTimeout таймаут проверки готовности
	HealthCheckTimeout = 2 // секунды
)
