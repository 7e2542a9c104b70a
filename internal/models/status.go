package models

import (
	"fmt"
	"strings"
)

// ReserveStatus is the reservation lifecycle state as reported by the
// backend and published to observers.
type ReserveStatus string

const (
	ReserveNoCached   ReserveStatus = "NOCACHED"
	ReserveCached     ReserveStatus = "CACHED"
	ReserveConsulting ReserveStatus = "CONSULTING"
	ReserveReserving  ReserveStatus = "RESERVING"
	ReserveReserved   ReserveStatus = "RESERVED"
	ReserveRedoLogin  ReserveStatus = "REDOLOGIN"
)

// IsTerminal reports whether the status ends an active reservation loop.
func (s ReserveStatus) IsTerminal() bool {
	return s == ReserveReserved || s == ReserveRedoLogin
}

// ParseReserveStatus maps a backend result tag onto the closed status
// set, case-insensitively. Tags outside the set are a protocol violation,
// never guessed at.
func ParseReserveStatus(tag string) (ReserveStatus, error) {
	switch ReserveStatus(strings.ToUpper(strings.TrimSpace(tag))) {
	case ReserveNoCached:
		return ReserveNoCached, nil
	case ReserveCached:
		return ReserveCached, nil
	case ReserveConsulting:
		return ReserveConsulting, nil
	case ReserveReserving:
		return ReserveReserving, nil
	case ReserveReserved:
		return ReserveReserved, nil
	case ReserveRedoLogin:
		return ReserveRedoLogin, nil
	default:
		return "", fmt.Errorf("unknown reservation result %q", tag)
	}
}

// StatusCode is the general outcome channel published next to the
// reservation state: idle, or one of the two error surfaces.
type StatusCode string

const (
	CodeBusy          StatusCode = "BUSY"
	CodeConnectError  StatusCode = "CONNECT_ERROR"
	CodeInternalError StatusCode = "INTERNAL_ERROR"
)
