package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates change events
type EventKind string

const (
	// FileChangedEvent is the only kind the pipeline reacts to
	FileChangedEvent EventKind = "FileChangedEvent"
)

// timestamp layouts accepted for eventTimeStamp, first match wins
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// ChangeEvent identifies one file-change occurrence on the remote directory.
// Fields are unexported so an event cannot change after creation.
type ChangeEvent struct {
	id         uuid.UUID
	kind       EventKind
	occurredAt time.Time
	fullPath   string
}

// NewChangeEvent creates a synthetic file-changed event stamped now.
func NewChangeEvent(fullPath string) (*ChangeEvent, error) {
	if strings.TrimSpace(fullPath) == "" {
		return nil, fmt.Errorf("%w: change event full path cannot be empty", ErrDecode)
	}

	return &ChangeEvent{
		id:         uuid.New(),
		kind:       FileChangedEvent,
		occurredAt: time.Now().UTC(),
		fullPath:   fullPath,
	}, nil
}

func (e *ChangeEvent) ID() uuid.UUID         { return e.id }
func (e *ChangeEvent) Kind() EventKind       { return e.kind }
func (e *ChangeEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *ChangeEvent) FullPath() string      { return e.fullPath }

// FileName returns the final path segment.
func (e *ChangeEvent) FileName() string {
	idx := strings.LastIndex(e.fullPath, "/")
	if idx < 0 {
		return e.fullPath
	}
	return e.fullPath[idx+1:]
}

// DirectoryName returns the path without its final segment, "" when there is none.
func (e *ChangeEvent) DirectoryName() string {
	idx := strings.LastIndex(e.fullPath, "/")
	switch {
	case idx < 0:
		return ""
	case idx == 0:
		return "/"
	default:
		return e.fullPath[:idx]
	}
}

// changeEventPayload is the wire shape of a FileChangedEvent notification body
type changeEventPayload struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	EventTimeStamp string `json:"eventTimeStamp"`
	FullPath       string `json:"fullPath"`
}

// DecodeChangeEvent parses a notification body into a ChangeEvent.
// A missing eventId gets a fresh one, a missing timestamp becomes now.
func DecodeChangeEvent(body []byte) (*ChangeEvent, error) {
	var payload changeEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: could not deserialize %s: %v", ErrDecode, FileChangedEvent, err)
	}

	if strings.TrimSpace(payload.FullPath) == "" {
		return nil, fmt.Errorf("%w: %s has no fullPath", ErrDecode, FileChangedEvent)
	}

	id := uuid.New()
	if payload.EventID != "" {
		parsed, err := uuid.Parse(payload.EventID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid eventId %q: %v", ErrDecode, payload.EventID, err)
		}
		id = parsed
	}

	occurredAt := time.Now().UTC()
	if payload.EventTimeStamp != "" {
		ts, err := parseEventTime(payload.EventTimeStamp)
		if err != nil {
			return nil, err
		}
		occurredAt = ts
	}

	kind := FileChangedEvent
	if payload.EventType != "" {
		kind = EventKind(payload.EventType)
	}

	return &ChangeEvent{
		id:         id,
		kind:       kind,
		occurredAt: occurredAt,
		fullPath:   payload.FullPath,
	}, nil
}

// parseEventTime accepts RFC3339 and offset-less timestamps, the latter taken as UTC
func parseEventTime(value string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid eventTimeStamp %q", ErrDecode, value)
}
