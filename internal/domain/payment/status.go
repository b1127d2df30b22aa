package payment

import "strings"

var payFastStatuses = map[string]Status{
	"COMPLETE":  StatusCompleted,
	"FAILED":    StatusFailed,
	"PENDING":   StatusProcessing,
	"CANCELLED": StatusCancelled,
}

// MapPayFastStatus maps an ITN payment_status. Unknown values are PROCESSING.
func MapPayFastStatus(s string) Status {
	if st, ok := payFastStatuses[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusProcessing
}

// MapYocoStatus maps a verified checkout status. Unknown values are PROCESSING.
func MapYocoStatus(s string) Status {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case "SUCCEEDED", "SUCCESSFUL", "COMPLETED":
		return StatusCompleted
	case StatusPending, StatusProcessing, StatusFailed, StatusRefunded, StatusCancelled:
		return st
	default:
		return StatusProcessing
	}
}

func rank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

// CanTransition reports whether a stored status may move to next. Repeats
// and moves back toward PENDING are rejected, as is leaving a terminal
// status, except COMPLETED to REFUNDED.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusCompleted && to == StatusRefunded {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return rank(to) > rank(from)
}
