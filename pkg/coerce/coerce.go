// Package coerce turns raw filter text into typed values.
package coerce

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidBool   = errors.New("invalid boolean")
	ErrInvalidUUID   = errors.New("invalid uuid")
	ErrInvalidSerial = errors.New("invalid serial")
	ErrEmptyString   = errors.New("empty string")
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindBool
	KindUUID
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindUUID:
		return "uuid"
	case KindSerial:
		return "serial"
	default:
		return "string"
	}
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text":
		return KindString, nil
	case "number", "numeric":
		return KindNumber, nil
	case "date", "datetime", "timestamp":
		return KindDate, nil
	case "bool", "boolean":
		return KindBool, nil
	case "uuid":
		return KindUUID, nil
	case "serial", "id":
		return KindSerial, nil
	}
	return KindString, fmt.Errorf("unknown kind %q", s)
}

// KindOf reports the kind of a value produced by this package.
func KindOf(v any) Kind {
	switch v.(type) {
	case float64:
		return KindNumber
	case time.Time:
		return KindDate
	case bool:
		return KindBool
	case uuid.UUID:
		return KindUUID
	case int64:
		return KindSerial
	default:
		return KindString
	}
}

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func Number(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !numberPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidNumber, s, err)
	}
	return f, nil
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.000",
}

var minDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// LooksLikeDate reports whether s has the shape of one of the accepted date
// forms. It does not validate the calendar.
func LooksLikeDate(s string) bool {
	return datePattern.MatchString(strings.TrimSpace(s))
}

// Date accepts ISO dates, ISO datetimes with or without an offset, and the
// legacy "YYYY-MM-DD HH:MM:SS.mmm" form. Values without an offset are UTC.
func Date(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			lastErr = err
			continue
		}
		if t.Before(minDate) {
			return time.Time{}, fmt.Errorf("%w: %q is before 1900-01-01", ErrInvalidDate, s)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, lastErr)
}

func Bool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "true", "TRUE", "True", "S":
		return true, nil
	case "false", "FALSE", "False", "N":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
}

// String trims s and rejects the empty result.
func String(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyString
	}
	return s, nil
}

func UUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %v", ErrInvalidUUID, s, err)
	}
	return id, nil
}

// Serial is a positive integer identifier.
func Serial(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSerial, s)
	}
	return n, nil
}

// As coerces s into the given kind.
func As(kind Kind, s string) (any, error) {
	switch kind {
	case KindNumber:
		return Number(s)
	case KindDate:
		return Date(s)
	case KindBool:
		return Bool(s)
	case KindUUID:
		return UUID(s)
	case KindSerial:
		return Serial(s)
	default:
		return String(s)
	}
}

// Infer tries number, then date, and falls back to the raw string. Booleans
// are never inferred so that "true" stays text unless a schema says otherwise.
func Infer(s string) any {
	if f, err := Number(s); err == nil {
		return f
	}
	if LooksLikeDate(s) {
		if t, err := Date(s); err == nil {
			return t
		}
	}
	return s
}

// InferElement is Infer for array members, where true and false are read as
// booleans.
func InferElement(s string) any {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true
	case "false":
		return false
	}
	return Infer(s)
}

// Split breaks a comma separated list, trimming entries and dropping empties.
func Split(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
