package buffer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Sequence is an aggregate over a recurring event-type chain. Mutated
// in place each time its key recurs; never exists at frequency 0.
type Sequence struct {
	Key            string               `json:"key"`
	Length         int                  `json:"length"`
	Frequency      int                  `json:"frequency"`
	Confidence     float64              `json:"confidence"`
	AvgGapSeconds  float64              `json:"avg_gap_seconds"`
	LastOccurrence time.Time            `json:"last_occurrence"`
	Contexts       []types.EventContext `json:"contexts,omitempty"`
}

// maxContextsPerSequence bounds the context samples kept per chain
const maxContextsPerSequence = 10

// Config tunes the buffer and its sequence table
type Config struct {
	Capacity          int
	MaxSequenceLength int
	PruneThreshold    float64 // relative frequency floor
	MinSequenceCount  int     // absolute frequency that protects from pruning
}

// DefaultConfig returns the reference defaults
func DefaultConfig() Config {
	return Config{
		Capacity:          1000,
		MaxSequenceLength: 5,
		PruneThreshold:    0.05,
		MinSequenceCount:  3,
	}
}

// Buffer is a fixed-capacity circular store of recent events plus the
// derived sequence table. Not safe for concurrent use; the engine
// serializes access.
type Buffer struct {
	cfg    Config
	logger *slog.Logger

	events  []types.UserEvent
	current int
	full    bool

	sequences map[string]*Sequence
	observed  int // total sequence upserts ever seen
}

// New creates an empty buffer
func New(cfg Config, logger *slog.Logger) *Buffer {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.MaxSequenceLength < 2 {
		cfg.MaxSequenceLength = DefaultConfig().MaxSequenceLength
	}
	return &Buffer{
		cfg:       cfg,
		logger:    logger,
		events:    make([]types.UserEvent, 0, cfg.Capacity),
		sequences: make(map[string]*Sequence),
	}
}

// Append stores an event, overwriting the oldest when full, and updates
// the sequence table.
func (b *Buffer) Append(event types.UserEvent) {
	if len(b.events) < b.cfg.Capacity {
		b.events = append(b.events, event)
		b.current = len(b.events) % b.cfg.Capacity
		if b.current == 0 {
			b.full = true
		}
	} else {
		b.events[b.current] = event
		b.current = (b.current + 1) % b.cfg.Capacity
		b.full = true
	}

	b.updateSequences()
	b.prune()
}

// Len returns the number of buffered events
func (b *Buffer) Len() int {
	return len(b.events)
}

// Capacity returns the configured capacity
func (b *Buffer) Capacity() int {
	return b.cfg.Capacity
}

// Chronological returns all buffered events oldest first, unwinding the
// wrap point.
func (b *Buffer) Chronological() []types.UserEvent {
	if !b.full {
		out := make([]types.UserEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]types.UserEvent, 0, len(b.events))
	out = append(out, b.events[b.current:]...)
	out = append(out, b.events[:b.current]...)
	return out
}

// Recent returns the last n events in chronological order regardless of
// wrap state.
func (b *Buffer) Recent(n int) []types.UserEvent {
	all := b.Chronological()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Sequences returns a copy of the sequence table
func (b *Buffer) Sequences() map[string]Sequence {
	out := make(map[string]Sequence, len(b.sequences))
	for k, s := range b.sequences {
		out[k] = *s
	}
	return out
}

// ObservedSequences returns the total number of sequence upserts seen
func (b *Buffer) ObservedSequences() int {
	return b.observed
}

// updateSequences upserts a sequence for every chain length from 2 to
// the configured max ending at the newest event.
func (b *Buffer) updateSequences() {
	all := b.Chronological()
	maxLen := b.cfg.MaxSequenceLength
	if maxLen > len(all) {
		maxLen = len(all)
	}

	for length := 2; length <= maxLen; length++ {
		window := all[len(all)-length:]
		chain := make([]types.EventType, length)
		for i, ev := range window {
			chain[i] = ev.Type
		}
		key := types.SequenceKey(chain)

		gap := meanGapSeconds(window)
		last := window[length-1]

		seq, ok := b.sequences[key]
		if !ok {
			seq = &Sequence{Key: key, Length: length}
			b.sequences[key] = seq
		}
		seq.Frequency++
		seq.Confidence = math.Min(float64(seq.Frequency)/10.0, 1.0)
		seq.LastOccurrence = last.Timestamp
		// Running mean over occurrences of this chain
		seq.AvgGapSeconds += (gap - seq.AvgGapSeconds) / float64(seq.Frequency)
		if len(seq.Contexts) < maxContextsPerSequence {
			seq.Contexts = append(seq.Contexts, last.Context)
		}

		b.observed++
	}
}

// prune removes chains that are both rare relative to everything seen
// and below the absolute floor. A chain reaching MinSequenceCount
// occurrences is never pruned, regardless of relative frequency.
func (b *Buffer) prune() {
	if b.observed == 0 {
		return
	}
	for key, seq := range b.sequences {
		relative := float64(seq.Frequency) / float64(b.observed)
		if relative < b.cfg.PruneThreshold && seq.Frequency < b.cfg.MinSequenceCount {
			delete(b.sequences, key)
		}
	}
}

func meanGapSeconds(events []types.UserEvent) float64 {
	if len(events) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(events); i++ {
		total += events[i].Timestamp.Sub(events[i-1].Timestamp).Seconds()
	}
	return total / float64(len(events)-1)
}

// Snapshot is the flat serialized form of the buffer. Round-trips
// through JSON; timestamps reconstruct via RFC 3339.
type Snapshot struct {
	Version      int                  `json:"version"`
	Capacity     int                  `json:"capacity"`
	Events       []types.UserEvent    `json:"events"`
	CurrentIndex int                  `json:"current_index"`
	IsFull       bool                 `json:"is_full"`
	Sequences    map[string]*Sequence `json:"sequences"`
	Observed     int                  `json:"observed"`
	SavedAt      time.Time            `json:"saved_at"`
}

// Snapshot captures the full buffer state
func (b *Buffer) Snapshot() Snapshot {
	events := make([]types.UserEvent, len(b.events))
	copy(events, b.events)
	sequences := make(map[string]*Sequence, len(b.sequences))
	for k, s := range b.sequences {
		copied := *s
		sequences[k] = &copied
	}
	return Snapshot{
		Version:      1,
		Capacity:     b.cfg.Capacity,
		Events:       events,
		CurrentIndex: b.current,
		IsFull:       b.full,
		Sequences:    sequences,
		Observed:     b.observed,
		SavedAt:      time.Now().UTC(),
	}
}

// Marshal serializes a snapshot to JSON
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal buffer snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the buffer state from a serialized snapshot. Events
// carried over from a larger previous capacity are truncated to the
// newest entries.
func (b *Buffer) Restore(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal buffer snapshot: %w", err)
	}

	if snap.Capacity == b.cfg.Capacity {
		b.events = snap.Events
		b.current = snap.CurrentIndex
		b.full = snap.IsFull
	} else {
		// Capacity changed between runs: replay newest events in order
		ordered := orderedFromSnapshot(snap)
		if len(ordered) > b.cfg.Capacity {
			ordered = ordered[len(ordered)-b.cfg.Capacity:]
		}
		b.events = ordered
		b.current = len(ordered) % b.cfg.Capacity
		b.full = len(ordered) == b.cfg.Capacity
	}

	if snap.Sequences != nil {
		b.sequences = snap.Sequences
	} else {
		b.sequences = make(map[string]*Sequence)
	}
	b.observed = snap.Observed

	b.logger.Info("Buffer restored from snapshot",
		"events", len(b.events),
		"sequences", len(b.sequences),
		"saved_at", snap.SavedAt.Format(time.RFC3339))

	return nil
}

func orderedFromSnapshot(snap Snapshot) []types.UserEvent {
	if !snap.IsFull {
		return snap.Events
	}
	out := make([]types.UserEvent, 0, len(snap.Events))
	out = append(out, snap.Events[snap.CurrentIndex:]...)
	out = append(out, snap.Events[:snap.CurrentIndex]...)
	return out
}
