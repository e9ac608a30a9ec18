package appointment

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var timePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every invalid field in a request instead of
// stopping at the first one.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func validStatus(s string) bool {
	switch AppointmentStatus(s) {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func validPaymentStatus(s string) bool {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentPaid:
		return true
	}
	return false
}

func validType(s string) bool {
	switch AppointmentType(s) {
	case TypeVideo, TypePhone, TypeChat:
		return true
	}
	return false
}

// validateCreate checks every field of a creation request and returns
// the parsed calendar date on success.
func validateCreate(p CreateParams) (time.Time, error) {
	verr := &ValidationError{}

	date, err := time.Parse(DateLayout, p.Date)
	if err != nil {
		verr.add("date", "must be a calendar date in YYYY-MM-DD form")
	}

	if !timePattern.MatchString(p.Time) {
		verr.add("time", "must be a 24h HH:MM time")
	}

	if !validType(p.Type) {
		verr.add("type", "must be one of video, phone, chat")
	}

	if p.Amount < 0 {
		verr.add("amount", "must be non-negative")
	}

	if p.Status != "" && !validStatus(p.Status) {
		verr.add("status", "must be one of scheduled, completed, cancelled")
	}

	if p.PaymentStatus != "" && !validPaymentStatus(p.PaymentStatus) {
		verr.add("payment_status", "must be one of pending, paid")
	}

	if err := verr.orNil(); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

func validateUpdate(p UpdateParams) error {
	verr := &ValidationError{}

	if p.Status != nil && !validStatus(*p.Status) {
		verr.add("status", "must be one of scheduled, completed, cancelled")
	}

	if p.PaymentStatus != nil && !validPaymentStatus(*p.PaymentStatus) {
		verr.add("payment_status", "must be one of pending, paid")
	}

	return verr.orNil()
}
