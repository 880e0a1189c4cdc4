package events

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("event not found")

var ErrConflict = errors.New("event conflict")

// ErrForbidden is returned when ownership enforcement rejects an update.
var ErrForbidden = errors.New("not the event creator")

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
