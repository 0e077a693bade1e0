package realtime

import (
	"errors"
	"time"
)

var (
	// ErrGroupOpen is returned when an interest is registered into a group that is already subscribed.
	ErrGroupOpen = errors.New("realtime: group already open")
	// ErrGroupNotFound is returned when a group name has no registrations.
	ErrGroupNotFound = errors.New("realtime: group not found")
	// ErrEmptyInterest is returned for a registration without a table or handler, or an open without interests.
	ErrEmptyInterest = errors.New("realtime: empty interest")
	// ErrChannelClosed is returned when publishing to or reading from a closed feed.
	ErrChannelClosed = errors.New("realtime: channel closed")
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// AnyTable matches changes on every table.
const AnyTable = "*"

// Change is one row-level change delivered by a Feed.
type Change struct {
	Table      string         `json:"table"`
	Event      EventType      `json:"event"`
	Record     map[string]any `json:"record,omitempty"`
	Old        map[string]any `json:"old_record,omitempty"`
	CommitTime time.Time      `json:"commit_timestamp"`
}

// SignalType is a channel lifecycle notification.
type SignalType string

const (
	SignalConnected    SignalType = "connected"
	SignalDisconnected SignalType = "disconnected"
)

// Signal reports channel connectivity. Err is set on disconnects caused by a transport failure.
type Signal struct {
	Type SignalType
	Err  error
}

// Interest is one logical subscription: a table, an event filter and a row predicate.
type Interest struct {
	Table  string
	Event  EventType
	Filter string
}

func (i Interest) matchesTable(table string) bool {
	return i.Table == AnyTable || i.Table == table
}

func (i Interest) matchesEvent(event EventType) bool {
	return i.Event == "" || i.Event == EventAll || i.Event == event
}
