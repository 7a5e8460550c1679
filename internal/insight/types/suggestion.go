package types

import "time"

// SmartSuggestion is an ephemeral, expiring recommendation. It becomes
// inactive exactly once (applied, dismissed, or read-time expired).
type SmartSuggestion struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Confidence  float64           `json:"confidence"` // 0-1
	Actions     []SuggestedAction `json:"actions"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	IsActive    bool              `json:"is_active"`
	SourceRule  string            `json:"source_rule,omitempty"`
}

// Active reports whether the suggestion is live at the given instant.
// Expiry is filtered at read time, never eagerly removed.
func (s *SmartSuggestion) Active(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// Notification is an outgoing payload appended to the result of an
// automation pass. The engine never invokes caller callbacks directly.
type Notification struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}
