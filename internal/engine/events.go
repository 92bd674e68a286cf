package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed state change.
type EventType string

const (
	EventTaskCreated   EventType = "task_created"
	EventTaskStarted   EventType = "task_started"
	EventTaskCompleted EventType = "task_completed"
	EventTaskUpdated   EventType = "task_updated"
	EventTaskDeleted   EventType = "task_deleted"
	EventLevelUp       EventType = "level_up"
	EventUserChanged   EventType = "user_changed"
)

// Event describes a change after its transaction committed.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	UserID     int64           `json:"user_id"`
	UserName   string          `json:"user_name,omitempty"`
	TaskID     int64           `json:"task_id,omitempty"`
	User       *User           `json:"user,omitempty"`
	Task       *Task           `json:"task,omitempty"`
	Completion *TaskCompletion `json:"completion,omitempty"`
	Level      int             `json:"level,omitempty"`
	At         time.Time       `json:"at"`
}

// NewEvent stamps a fresh event id.
func NewEvent(typ EventType, at time.Time) Event {
	return Event{ID: uuid.New().String(), Type: typ, At: at}
}

// Publisher receives events. Publish must not block the caller for long and
// must not call back into the Service.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }
