package mining

import (
	"fmt"
	"testing"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

func TestSuggestMatchesContext(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-1 * time.Hour)

	var events []types.UserEvent
	for i := 0; i < 4; i++ {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("t-%d", i), "deep_work",
			types.EventContext{EnergyLevel: 5, TimeOfDay: types.TimeMorning, DayOfWeek: 2}, base.Add(time.Duration(i)*time.Minute)))
	}
	m.DetectPatterns(events)

	now := time.Now()
	match := &types.Context{EnergyLevel: 5, TimeOfDay: types.TimeMorning, DayOfWeek: 2}
	suggestions := m.Suggest(match, now)
	if len(suggestions) == 0 {
		t.Fatal("expected suggestions for matching context")
	}
	for _, s := range suggestions {
		if !s.Active(now) {
			t.Errorf("suggestion %q not active", s.Title)
		}
		if !s.ExpiresAt.Equal(now.Add(suggestionTTL)) {
			t.Errorf("suggestion %q expiry = %v", s.Title, s.ExpiresAt)
		}
	}

	miss := &types.Context{EnergyLevel: 1, TimeOfDay: types.TimeNight, DayOfWeek: 6}
	if got := m.Suggest(miss, now); len(got) != 0 {
		t.Errorf("got %d suggestions for non-matching context", len(got))
	}
}

func TestSuggestCapsAndSorts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSuggestions = 2
	m := NewMiner(cfg, testLogger())
	base := time.Now().Add(-1 * time.Hour)

	// Several task types completed in the morning slot produce more
	// than two matching patterns.
	var events []types.UserEvent
	for i, taskType := range []string{"deep_work", "deep_work", "deep_work", "deep_work", "admin", "admin", "admin"} {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("t-%d", i), taskType,
			types.EventContext{EnergyLevel: 4, TimeOfDay: types.TimeMorning, DayOfWeek: 1}, base.Add(time.Duration(i)*time.Minute)))
	}
	m.DetectPatterns(events)

	ctx := &types.Context{EnergyLevel: 4, TimeOfDay: types.TimeMorning, DayOfWeek: 1}
	suggestions := m.Suggest(ctx, time.Now())
	if len(suggestions) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(suggestions))
	}
	if suggestions[0].Confidence < suggestions[1].Confidence {
		t.Error("suggestions not sorted by confidence")
	}
}
