package types

import (
	"fmt"
	"time"
)

// EventType identifies a user action. The set is closed; ingestion
// rejects anything else.
type EventType string

const (
	EventTaskCreated        EventType = "task_created"
	EventTaskCompleted      EventType = "task_completed"
	EventTaskPostponed      EventType = "task_postponed"
	EventTaskDeleted        EventType = "task_deleted"
	EventRoutineActivated   EventType = "routine_activated"
	EventRoutineCompleted   EventType = "routine_completed"
	EventNoteProcessed      EventType = "note_processed"
	EventChatbotInteraction EventType = "chatbot_interaction"
	EventQuickAction        EventType = "quick_action"
	EventMoodChange         EventType = "mood_change"
	EventFocusSession       EventType = "focus_session"
)

var knownEventTypes = map[EventType]bool{
	EventTaskCreated:        true,
	EventTaskCompleted:      true,
	EventTaskPostponed:      true,
	EventTaskDeleted:        true,
	EventRoutineActivated:   true,
	EventRoutineCompleted:   true,
	EventNoteProcessed:      true,
	EventChatbotInteraction: true,
	EventQuickAction:        true,
	EventMoodChange:         true,
	EventFocusSession:       true,
}

// IsTaskEvent reports whether the type describes a task action
func (t EventType) IsTaskEvent() bool {
	switch t {
	case EventTaskCreated, EventTaskCompleted, EventTaskPostponed, EventTaskDeleted:
		return true
	}
	return false
}

// Valid reports whether the type belongs to the closed set
func (t EventType) Valid() bool {
	return knownEventTypes[t]
}

// TimeOfDay buckets used throughout context derivation and matching
const (
	TimeMorning   = "morning"
	TimeAfternoon = "afternoon"
	TimeEvening   = "evening"
	TimeNight     = "night"
)

// EventContext captures the situation an event happened in. Derived once
// at event creation, never persisted on its own.
type EventContext struct {
	EnergyLevel int    `json:"energy_level"` // 1-5
	TimeOfDay   string `json:"time_of_day"`
	DayOfWeek   int    `json:"day_of_week"` // 0 = Sunday
	DeviceType  string `json:"device_type,omitempty"`
	Location    string `json:"location,omitempty"`
}

// UserEvent is an immutable record of one user action
type UserEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id,omitempty"`
	Context   EventContext           `json:"context"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// requiredMetadata lists the metadata keys each event type must carry.
// Events are tagged variants: only the fields relevant to the type.
var requiredMetadata = map[EventType][]string{
	EventTaskCreated:      {"task_id", "task_type"},
	EventTaskCompleted:    {"task_id", "task_type"},
	EventTaskPostponed:    {"task_id"},
	EventTaskDeleted:      {"task_id"},
	EventRoutineActivated: {"routine_id"},
	EventRoutineCompleted: {"routine_id"},
	EventMoodChange:       {"mood"},
	EventFocusSession:     {"duration_minutes"},
}

// ValidateEvent checks an event at the ingestion boundary. Malformed
// events are rejected and never enter the buffer.
func ValidateEvent(e *UserEvent) error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Context.EnergyLevel < 1 || e.Context.EnergyLevel > 5 {
		return fmt.Errorf("energy level %d out of range [1,5]", e.Context.EnergyLevel)
	}
	if e.Context.DayOfWeek < 0 || e.Context.DayOfWeek > 6 {
		return fmt.Errorf("day of week %d out of range [0,6]", e.Context.DayOfWeek)
	}
	switch e.Context.TimeOfDay {
	case TimeMorning, TimeAfternoon, TimeEvening, TimeNight:
	default:
		return fmt.Errorf("unknown time of day %q", e.Context.TimeOfDay)
	}
	for _, key := range requiredMetadata[e.Type] {
		if _, ok := e.Metadata[key]; !ok {
			return fmt.Errorf("event type %s requires metadata key %q", e.Type, key)
		}
	}
	return nil
}

// TaskType extracts the task type from event metadata, if present
func (e *UserEvent) TaskType() (string, bool) {
	v, ok := e.Metadata["task_type"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
