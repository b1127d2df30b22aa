package appointment

import "errors"

var (
	ErrRecurringNotFound = errors.New("recurring appointment not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrProviderMismatch  = errors.New("service does not belong to provider")
	ErrSelfBooking       = errors.New("cannot book your own service")
	ErrNoOccurrences     = errors.New("recurrence yields no dates")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidAction     = errors.New("invalid action")
	ErrNotParticipant    = errors.New("not a participant of this booking")
	ErrAlreadyCancelled  = errors.New("recurring appointment is cancelled")
	ErrInvalidDates      = errors.New("end date before start date")
)
