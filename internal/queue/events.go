package queue

import "time"

// EventType names a queue change.
type EventType string

const (
	EventTaken   EventType = "screenshot-taken"
	EventEvicted EventType = "screenshot-evicted"
	EventDeleted EventType = "screenshot-deleted"
	EventReset   EventType = "queues-reset"
)

// Event is published after the queues change.
type Event struct {
	Type EventType `json:"type"`
	View View      `json:"view,omitempty"`
	Path string    `json:"path,omitempty"`
	Time time.Time `json:"time"`
}

// Notifier receives queue events. It is called synchronously and must not
// block or call back into the Manager.
type Notifier func(Event)
