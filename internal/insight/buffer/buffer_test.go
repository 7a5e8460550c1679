package buffer

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeEvent(t types.EventType, ts time.Time) types.UserEvent {
	return types.UserEvent{
		ID:        ts.Format(time.RFC3339Nano),
		Type:      t,
		Timestamp: ts,
		SessionID: "s1",
		Context: types.EventContext{
			EnergyLevel: 3,
			TimeOfDay:   types.TimeMorning,
			DayOfWeek:   1,
		},
	}
}

func TestAppend_NeverExceedsCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 10
	b := New(cfg, testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 35; i++ {
		b.Append(makeEvent(types.EventQuickAction, base.Add(time.Duration(i)*time.Minute)))
		if b.Len() > cfg.Capacity {
			t.Fatalf("buffer exceeded capacity: %d > %d", b.Len(), cfg.Capacity)
		}
	}

	if b.Len() != cfg.Capacity {
		t.Errorf("expected %d events after overflow, got %d", cfg.Capacity, b.Len())
	}
}

func TestChronological_AfterWraparound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 5
	b := New(cfg, testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		b.Append(makeEvent(types.EventTaskCreated, base.Add(time.Duration(i)*time.Minute)))
	}

	events := b.Chronological()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("events out of order at index %d", i)
		}
	}
	// Oldest surviving event must be #8 (13 appended, capacity 5)
	expectedOldest := base.Add(8 * time.Minute)
	if !events[0].Timestamp.Equal(expectedOldest) {
		t.Errorf("expected oldest event at %v, got %v", expectedOldest, events[0].Timestamp)
	}
}

func TestRecent_ReturnsLastN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 8
	b := New(cfg, testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		b.Append(makeEvent(types.EventNoteProcessed, base.Add(time.Duration(i)*time.Minute)))
	}

	recent := b.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	if !recent[2].Timestamp.Equal(base.Add(19 * time.Minute)) {
		t.Errorf("last event should be the newest, got %v", recent[2].Timestamp)
	}

	// Requesting more than buffered returns everything chronologically
	all := b.Recent(100)
	if len(all) != 8 {
		t.Errorf("expected 8 events, got %d", len(all))
	}
}

func TestSequenceTable_UpsertAndConfidence(t *testing.T) {
	b := New(DefaultConfig(), testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	// Repeat the same 2-chain: created -> completed, five times
	for i := 0; i < 5; i++ {
		b.Append(makeEvent(types.EventTaskCreated, base.Add(time.Duration(2*i)*time.Minute)))
		b.Append(makeEvent(types.EventTaskCompleted, base.Add(time.Duration(2*i+1)*time.Minute)))
	}

	key := types.SequenceKey([]types.EventType{types.EventTaskCreated, types.EventTaskCompleted})
	seqs := b.Sequences()
	seq, ok := seqs[key]
	if !ok {
		t.Fatalf("expected sequence %q in table", key)
	}
	if seq.Frequency != 5 {
		t.Errorf("expected frequency 5, got %d", seq.Frequency)
	}
	if seq.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5 (freq/10), got %f", seq.Confidence)
	}
	if seq.AvgGapSeconds < 59 || seq.AvgGapSeconds > 61 {
		t.Errorf("expected ~60s average gap, got %f", seq.AvgGapSeconds)
	}
}

func TestSequenceConfidence_CapsAtOne(t *testing.T) {
	b := New(DefaultConfig(), testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		b.Append(makeEvent(types.EventFocusSession, base.Add(time.Duration(2*i)*time.Minute)))
		b.Append(makeEvent(types.EventTaskCompleted, base.Add(time.Duration(2*i+1)*time.Minute)))
	}

	key := types.SequenceKey([]types.EventType{types.EventFocusSession, types.EventTaskCompleted})
	seq, ok := b.Sequences()[key]
	if !ok {
		t.Fatalf("expected sequence %q", key)
	}
	if seq.Confidence != 1.0 {
		t.Errorf("confidence must cap at 1.0, got %f", seq.Confidence)
	}
}

func TestPruning_RareOneOffRemoved(t *testing.T) {
	b := New(DefaultConfig(), testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := func() time.Time {
		base = base.Add(time.Minute)
		return base
	}

	// One rare chain early on: mood_change -> chatbot_interaction
	b.Append(makeEvent(types.EventMoodChange, ts()))
	b.Append(makeEvent(types.EventChatbotInteraction, ts()))
	rareKey := types.SequenceKey([]types.EventType{types.EventMoodChange, types.EventChatbotInteraction})
	if _, ok := b.Sequences()[rareKey]; !ok {
		t.Fatal("rare chain should exist right after first occurrence")
	}

	// Flood the table with a dominant chain until the rare one drops
	// below 5% relative frequency
	for i := 0; i < 30; i++ {
		b.Append(makeEvent(types.EventTaskCreated, ts()))
		b.Append(makeEvent(types.EventTaskCompleted, ts()))
	}

	if _, ok := b.Sequences()[rareKey]; ok {
		t.Error("rare one-off chain should have been pruned")
	}
}

func TestPruning_AbsoluteFloorProtects(t *testing.T) {
	b := New(DefaultConfig(), testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := func() time.Time {
		base = base.Add(time.Minute)
		return base
	}

	// Repeat the protected chain three times first
	for i := 0; i < 3; i++ {
		b.Append(makeEvent(types.EventMoodChange, ts()))
		b.Append(makeEvent(types.EventFocusSession, ts()))
		// Break the window so longer chains vary
		b.Append(makeEvent(types.EventQuickAction, ts()))
	}
	protectedKey := types.SequenceKey([]types.EventType{types.EventMoodChange, types.EventFocusSession})
	if seq, ok := b.Sequences()[protectedKey]; !ok || seq.Frequency != 3 {
		t.Fatalf("expected protected chain at frequency 3, got %+v", seq)
	}

	// Flood with other chains; relative frequency drops far below 5%
	// but the absolute floor of 3 keeps it
	for i := 0; i < 60; i++ {
		b.Append(makeEvent(types.EventTaskCreated, ts()))
		b.Append(makeEvent(types.EventTaskCompleted, ts()))
	}

	if _, ok := b.Sequences()[protectedKey]; !ok {
		t.Error("chain with frequency >= 3 must survive pruning")
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 6
	b := New(cfg, testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		b.Append(makeEvent(types.EventTaskCreated, base.Add(time.Duration(i)*time.Minute)))
	}

	data, err := b.Snapshot().Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	restored := New(cfg, testLogger())
	if err := restored.Restore(data); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if restored.Len() != b.Len() {
		t.Errorf("expected %d events, got %d", b.Len(), restored.Len())
	}

	orig := b.Chronological()
	got := restored.Chronological()
	for i := range orig {
		if !got[i].Timestamp.Equal(orig[i].Timestamp) {
			t.Errorf("event %d timestamp mismatch: %v vs %v", i, got[i].Timestamp, orig[i].Timestamp)
		}
	}

	if len(restored.Sequences()) != len(b.Sequences()) {
		t.Errorf("sequence table size mismatch: %d vs %d",
			len(restored.Sequences()), len(b.Sequences()))
	}
}

func TestRestore_SmallerCapacityKeepsNewest(t *testing.T) {
	big := DefaultConfig()
	big.Capacity = 10
	b := New(big, testLogger())

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		b.Append(makeEvent(types.EventTaskCreated, base.Add(time.Duration(i)*time.Minute)))
	}
	data, err := b.Snapshot().Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	small := DefaultConfig()
	small.Capacity = 4
	restored := New(small, testLogger())
	if err := restored.Restore(data); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	events := restored.Chronological()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(base.Add(6 * time.Minute)) {
		t.Errorf("expected newest 4 events kept, oldest is %v", events[0].Timestamp)
	}
}
