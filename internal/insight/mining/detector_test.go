package mining

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func taskEvent(t types.EventType, taskID, taskType string, ctx types.EventContext, ts time.Time) types.UserEvent {
	return types.UserEvent{
		ID:        taskID + "-" + string(t),
		Type:      t,
		Timestamp: ts,
		Context:   ctx,
		Metadata: map[string]interface{}{
			"task_id":   taskID,
			"task_type": taskType,
		},
	}
}

func TestDetectEnergyPattern(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-1 * time.Hour)

	var events []types.UserEvent
	for i := 0; i < 4; i++ {
		events = append(events, taskEvent(
			types.EventTaskCompleted,
			fmt.Sprintf("task-%d", i),
			"deep_work",
			types.EventContext{EnergyLevel: 5, TimeOfDay: types.TimeMorning, DayOfWeek: 2},
			base.Add(time.Duration(i)*time.Minute),
		))
	}

	patterns := m.DetectPatterns(events)

	var energy *types.Pattern
	for _, p := range patterns {
		if p.Type == types.PatternEnergy {
			energy = p
			break
		}
	}
	if energy == nil {
		t.Fatal("expected an energy pattern")
	}
	if energy.Frequency != 4 {
		t.Errorf("frequency = %d, want 4", energy.Frequency)
	}
	if energy.Confidence < 0.75 {
		t.Errorf("confidence = %.2f, want >= 0.75", energy.Confidence)
	}
	if energy.Key != "energy:5:deep_work" {
		t.Errorf("key = %q", energy.Key)
	}
}

func TestDetectTemporalPattern(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-2 * time.Hour)

	var events []types.UserEvent
	for i := 0; i < 3; i++ {
		events = append(events, types.UserEvent{
			ID:        fmt.Sprintf("ev-%d", i),
			Type:      types.EventFocusSession,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Context:   types.EventContext{EnergyLevel: 4, TimeOfDay: types.TimeMorning},
			Metadata:  map[string]interface{}{"duration_minutes": 25},
		})
	}

	patterns := m.DetectPatterns(events)

	found := false
	for _, p := range patterns {
		if p.Type != types.PatternTemporal {
			continue
		}
		found = true
		if p.Conditions[0].Field != "time_of_day" || p.Conditions[0].Value != types.TimeMorning {
			t.Errorf("unexpected condition: %+v", p.Conditions[0])
		}
	}
	if !found {
		t.Fatal("expected a temporal pattern")
	}
}

func TestDetectSequentialPattern(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-3 * time.Hour)

	// Three repetitions of created -> completed, interleaved with noise
	// so the pair is the only chain reaching the frequency floor.
	var events []types.UserEvent
	ts := base
	for i := 0; i < 3; i++ {
		events = append(events,
			taskEvent(types.EventTaskCreated, fmt.Sprintf("t-%d", i), "admin",
				types.EventContext{EnergyLevel: 3, TimeOfDay: types.TimeAfternoon}, ts),
			taskEvent(types.EventTaskCompleted, fmt.Sprintf("t-%d", i), "admin",
				types.EventContext{EnergyLevel: 3, TimeOfDay: types.TimeAfternoon}, ts.Add(time.Minute)),
		)
		ts = ts.Add(30 * time.Minute)
	}

	patterns := m.DetectPatterns(events)

	key := "sequence:" + types.SequenceKey([]types.EventType{types.EventTaskCreated, types.EventTaskCompleted})
	var seq *types.Pattern
	for _, p := range patterns {
		if p.Key == key {
			seq = p
			break
		}
	}
	if seq == nil {
		t.Fatalf("expected pattern %q", key)
	}
	if seq.Frequency != 3 {
		t.Errorf("frequency = %d, want 3", seq.Frequency)
	}
	if seq.Conditions[0].Field != "last_event_type" {
		t.Errorf("condition field = %q", seq.Conditions[0].Field)
	}
}

func TestDetectSequentialIgnoresStaleEvents(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	stale := time.Now().Add(-48 * time.Hour)

	var events []types.UserEvent
	for i := 0; i < 5; i++ {
		events = append(events,
			taskEvent(types.EventTaskCreated, fmt.Sprintf("old-%d", i), "admin",
				types.EventContext{EnergyLevel: 3, TimeOfDay: types.TimeMorning}, stale.Add(time.Duration(i)*time.Minute)),
		)
	}

	patterns := m.DetectPatterns(events)
	for _, p := range patterns {
		if p.Type == types.PatternSequence {
			t.Errorf("stale events produced sequence pattern %q", p.Key)
		}
	}
}

func TestDetectContextualPattern(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-1 * time.Hour)
	ctx := types.EventContext{EnergyLevel: 2, TimeOfDay: types.TimeEvening, DeviceType: "mobile"}

	var events []types.UserEvent
	for i := 0; i < 3; i++ {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("c-%d", i), "reading",
			ctx, base.Add(time.Duration(i)*time.Minute)))
	}

	patterns := m.DetectPatterns(events)

	var contextual *types.Pattern
	for _, p := range patterns {
		if p.Type == types.PatternContextual {
			contextual = p
			break
		}
	}
	if contextual == nil {
		t.Fatal("expected a contextual pattern")
	}
	if len(contextual.Conditions) != 3 {
		t.Fatalf("conditions = %d, want 3", len(contextual.Conditions))
	}
	evalCtx := &types.Context{EnergyLevel: 2, TimeOfDay: types.TimeEvening, DeviceType: "mobile"}
	if !contextual.Matches(evalCtx.Field) {
		t.Error("pattern should match the context it was mined from")
	}
}

func TestBelowFrequencyFloorIgnored(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-1 * time.Hour)

	events := []types.UserEvent{
		taskEvent(types.EventTaskCompleted, "solo", "deep_work",
			types.EventContext{EnergyLevel: 5, TimeOfDay: types.TimeMorning}, base),
	}

	if patterns := m.DetectPatterns(events); len(patterns) != 0 {
		t.Errorf("got %d patterns from a single event", len(patterns))
	}
}

func TestPatternsSortedByConfidence(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-1 * time.Hour)

	// Energy level 5 gets 4 completions of one type (high confidence),
	// level 2 gets 3 of one type plus 2 of another (lower confidence).
	var events []types.UserEvent
	for i := 0; i < 4; i++ {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("a-%d", i), "deep_work",
			types.EventContext{EnergyLevel: 5, TimeOfDay: types.TimeMorning}, base.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 3; i++ {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("b-%d", i), "admin",
			types.EventContext{EnergyLevel: 2, TimeOfDay: types.TimeEvening}, base.Add(time.Duration(10+i)*time.Minute)))
	}
	for i := 0; i < 2; i++ {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("c-%d", i), "email",
			types.EventContext{EnergyLevel: 2, TimeOfDay: types.TimeEvening}, base.Add(time.Duration(20+i)*time.Minute)))
	}

	patterns := m.DetectPatterns(events)
	for i := 1; i < len(patterns); i++ {
		if patterns[i].Confidence > patterns[i-1].Confidence {
			t.Fatalf("patterns not sorted: %.2f before %.2f", patterns[i-1].Confidence, patterns[i].Confidence)
		}
	}
}

func TestDetectPatternsKeepsTableOnEmptyInput(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())
	base := time.Now().Add(-1 * time.Hour)

	var events []types.UserEvent
	for i := 0; i < 4; i++ {
		events = append(events, taskEvent(types.EventTaskCompleted, fmt.Sprintf("t-%d", i), "deep_work",
			types.EventContext{EnergyLevel: 5, TimeOfDay: types.TimeMorning}, base.Add(time.Duration(i)*time.Minute)))
	}
	first := m.DetectPatterns(events)
	if len(first) == 0 {
		t.Fatal("expected patterns")
	}

	second := m.DetectPatterns(nil)
	if len(second) != len(first) {
		t.Errorf("empty pass changed table: %d -> %d", len(first), len(second))
	}
}
