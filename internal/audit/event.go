// Package audit records every compile request as an event on NATS and stores
// the events in ClickHouse.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type Event struct {
	ID       string
	Time     time.Time
	KeyName  string
	Filter   string
	Target   string
	Outcome  string
	Error    string
	Cached   bool
	Duration time.Duration
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(keyName, filter, target string) Event {
	return Event{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		KeyName: keyName,
		Filter:  filter,
		Target:  target,
		Outcome: OutcomeOK,
	}
}

// Fail marks the event as failed with err.
func (e *Event) Fail(err error) {
	e.Outcome = OutcomeError
	e.Error = err.Error()
}

// text replaces invalid UTF-8, which protobuf strings reject.
func text(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Marshal encodes the event as a protobuf Struct. Invalid UTF-8 in the
// caller supplied strings is replaced with U+FFFD.
func (e Event) Marshal() ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":          text(e.ID),
		"time":        e.Time.UTC().Format(time.RFC3339Nano),
		"key_name":    text(e.KeyName),
		"filter":      text(e.Filter),
		"target":      text(e.Target),
		"outcome":     text(e.Outcome),
		"error":       text(e.Error),
		"cached":      e.Cached,
		"duration_us": float64(e.Duration.Microseconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event struct: %w", err)
	}
	return proto.Marshal(s)
}

func Unmarshal(data []byte) (Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	f := s.GetFields()
	e := Event{
		ID:       f["id"].GetStringValue(),
		KeyName:  f["key_name"].GetStringValue(),
		Filter:   f["filter"].GetStringValue(),
		Target:   f["target"].GetStringValue(),
		Outcome:  f["outcome"].GetStringValue(),
		Error:    f["error"].GetStringValue(),
		Cached:   f["cached"].GetBoolValue(),
		Duration: time.Duration(f["duration_us"].GetNumberValue()) * time.Microsecond,
	}
	if e.ID == "" {
		return Event{}, fmt.Errorf("event without id")
	}

	ts, err := time.Parse(time.RFC3339Nano, f["time"].GetStringValue())
	if err != nil {
		return Event{}, fmt.Errorf("event %s: bad time: %w", e.ID, err)
	}
	e.Time = ts
	return e, nil
}
