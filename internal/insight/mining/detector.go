package mining

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Config tunes the pattern miner
type Config struct {
	MinFrequency        int
	MaxSequenceLength   int
	SequenceWindow      time.Duration
	MaxSuggestions      int
	SimilarityThreshold float64
}

// DefaultConfig returns the reference defaults
func DefaultConfig() Config {
	return Config{
		MinFrequency:        3,
		MaxSequenceLength:   5,
		SequenceWindow:      24 * time.Hour,
		MaxSuggestions:      5,
		SimilarityThreshold: 0.7,
	}
}

// ProcessingError records a failed mining pass
type ProcessingError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Context   string    `json:"context"`
}

// maxProcessingErrors bounds the error log
const maxProcessingErrors = 50

// Miner runs the detection strategies and keeps the resulting pattern
// table and cluster set. Not safe for concurrent use; the engine
// serializes access.
type Miner struct {
	cfg    Config
	logger *slog.Logger

	patterns   map[string]*types.Pattern
	patternLog []string // insertion order, tie-breaking only
	clusters   []*types.TaskCluster
	procErrors []ProcessingError
	lastPassAt time.Time
}

// NewMiner creates a miner with no patterns yet
func NewMiner(cfg Config, logger *slog.Logger) *Miner {
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = DefaultConfig().MinFrequency
	}
	if cfg.MaxSequenceLength < 2 {
		cfg.MaxSequenceLength = DefaultConfig().MaxSequenceLength
	}
	if cfg.SequenceWindow <= 0 {
		cfg.SequenceWindow = DefaultConfig().SequenceWindow
	}
	return &Miner{
		cfg:      cfg,
		logger:   logger,
		patterns: make(map[string]*types.Pattern),
	}
}

// DetectPatterns runs all four strategies over the event slice and
// merges their findings into the pattern table. A failure during the
// pass is recorded and the previous table is kept; the error never
// reaches the caller as a panic.
func (m *Miner) DetectPatterns(events []types.UserEvent) (result []*types.Pattern) {
	defer func() {
		if r := recover(); r != nil {
			m.recordError(fmt.Sprintf("mining pass panicked: %v", r), "detectPatterns")
			result = m.Patterns()
		}
	}()

	if len(events) == 0 {
		return m.Patterns()
	}

	now := time.Now().UTC()

	// The strategies are independent: each one only reads the event
	// slice and produces its own pattern set before a single merge.
	found := make([]*types.Pattern, 0, 16)
	found = append(found, m.detectTemporal(events, now)...)
	found = append(found, m.detectSequential(events, now)...)
	found = append(found, m.detectContextual(events, now)...)
	found = append(found, m.detectEnergy(events, now)...)

	for _, p := range found {
		if _, exists := m.patterns[p.Key]; !exists {
			m.patternLog = append(m.patternLog, p.Key)
		}
		m.patterns[p.Key] = p
	}
	m.lastPassAt = now

	m.logger.Info("Mining pass completed",
		"events", len(events),
		"patterns_found", len(found),
		"patterns_total", len(m.patterns))

	return m.Patterns()
}

// detectTemporal groups events by time-of-day slot and emits a pattern
// for each slot whose dominant event type reaches the frequency floor.
func (m *Miner) detectTemporal(events []types.UserEvent, now time.Time) []*types.Pattern {
	slots := make(map[string][]types.UserEvent)
	for _, ev := range events {
		slots[ev.Context.TimeOfDay] = append(slots[ev.Context.TimeOfDay], ev)
	}

	var patterns []*types.Pattern
	for slot, slotEvents := range slots {
		dominant, count := dominantEventType(slotEvents)
		if count < m.cfg.MinFrequency {
			continue
		}
		patterns = append(patterns, &types.Pattern{
			Key:  fmt.Sprintf("temporal:%s:%s", slot, dominant),
			Type: types.PatternTemporal,
			Name: fmt.Sprintf("%s tends to happen during %s", dominant, slot),
			Conditions: []types.Condition{
				{Field: "time_of_day", Operator: types.OpEquals, Value: slot},
			},
			Actions: []types.SuggestedAction{
				{Type: "schedule_event", Params: map[string]interface{}{
					"event_type":  string(dominant),
					"time_of_day": slot,
				}},
			},
			Frequency:  count,
			Confidence: float64(count) / float64(len(slotEvents)),
			Support:    float64(count) / float64(len(events)),
			IsActive:   true,
			MinedAt:    now,
		})
	}
	return patterns
}

// detectSequential counts identical type-chains among contiguous
// sub-sequences inside the rolling window.
func (m *Miner) detectSequential(events []types.UserEvent, now time.Time) []*types.Pattern {
	cutoff := now.Add(-m.cfg.SequenceWindow)
	var windowed []types.UserEvent
	for _, ev := range events {
		if ev.Timestamp.After(cutoff) {
			windowed = append(windowed, ev)
		}
	}
	if len(windowed) < 2 {
		return nil
	}

	counts := make(map[string]int)
	chains := make(map[string][]types.EventType)
	total := 0
	for length := 2; length <= m.cfg.MaxSequenceLength; length++ {
		for i := 0; i+length <= len(windowed); i++ {
			chain := make([]types.EventType, length)
			for j := 0; j < length; j++ {
				chain[j] = windowed[i+j].Type
			}
			key := types.SequenceKey(chain)
			counts[key]++
			chains[key] = chain
			total++
		}
	}

	var patterns []*types.Pattern
	for key, count := range counts {
		if count < m.cfg.MinFrequency {
			continue
		}
		chain := chains[key]
		next := chain[len(chain)-1]
		patterns = append(patterns, &types.Pattern{
			Key:  "sequence:" + key,
			Type: types.PatternSequence,
			Name: fmt.Sprintf("sequence %s recurs", key),
			Conditions: []types.Condition{
				{Field: "last_event_type", Operator: types.OpEquals, Value: string(chain[len(chain)-2])},
			},
			Actions: []types.SuggestedAction{
				{Type: "suggest_next_action", Params: map[string]interface{}{
					"event_type": string(next),
					"chain":      key,
				}},
			},
			Frequency:  count,
			Confidence: float64(count) / float64(total),
			Support:    float64(count) / float64(len(windowed)),
			IsActive:   true,
			MinedAt:    now,
		})
	}
	return patterns
}

// detectContextual groups events by the composite situation key and
// emits preference patterns for dominant task types.
func (m *Miner) detectContextual(events []types.UserEvent, now time.Time) []*types.Pattern {
	type contextGroup struct {
		timeOfDay  string
		deviceType string
		energy     int
		events     []types.UserEvent
	}

	groups := make(map[string]*contextGroup)
	for _, ev := range events {
		key := fmt.Sprintf("%s|%s|%d", ev.Context.TimeOfDay, ev.Context.DeviceType, ev.Context.EnergyLevel)
		g, ok := groups[key]
		if !ok {
			g = &contextGroup{
				timeOfDay:  ev.Context.TimeOfDay,
				deviceType: ev.Context.DeviceType,
				energy:     ev.Context.EnergyLevel,
			}
			groups[key] = g
		}
		g.events = append(g.events, ev)
	}

	var patterns []*types.Pattern
	for key, g := range groups {
		taskType, count := dominantTaskType(g.events, false)
		if taskType == "" || count < m.cfg.MinFrequency {
			continue
		}

		conditions := []types.Condition{
			{Field: "time_of_day", Operator: types.OpEquals, Value: g.timeOfDay},
			{Field: "energy_level", Operator: types.OpEquals, Value: g.energy},
		}
		if g.deviceType != "" {
			conditions = append(conditions, types.Condition{
				Field: "device_type", Operator: types.OpEquals, Value: g.deviceType,
			})
		}

		patterns = append(patterns, &types.Pattern{
			Key:        "contextual:" + key + ":" + taskType,
			Type:       types.PatternContextual,
			Name:       fmt.Sprintf("prefers %s when %s at energy %d", taskType, g.timeOfDay, g.energy),
			Conditions: conditions,
			Actions: []types.SuggestedAction{
				{Type: "suggest_task_type", Params: map[string]interface{}{
					"task_type": taskType,
				}},
			},
			Frequency:  count,
			Confidence: float64(count) / float64(len(g.events)),
			Support:    float64(count) / float64(len(events)),
			IsActive:   true,
			MinedAt:    now,
		})
	}
	return patterns
}

// detectEnergy groups completed-task events by energy level and finds
// the task type most often completed at each level.
func (m *Miner) detectEnergy(events []types.UserEvent, now time.Time) []*types.Pattern {
	levels := make(map[int][]types.UserEvent)
	for _, ev := range events {
		if ev.Type != types.EventTaskCompleted {
			continue
		}
		levels[ev.Context.EnergyLevel] = append(levels[ev.Context.EnergyLevel], ev)
	}

	var patterns []*types.Pattern
	for level, levelEvents := range levels {
		taskType, count := dominantTaskType(levelEvents, true)
		if taskType == "" || count < m.cfg.MinFrequency {
			continue
		}
		patterns = append(patterns, &types.Pattern{
			Key:  fmt.Sprintf("energy:%d:%s", level, taskType),
			Type: types.PatternEnergy,
			Name: fmt.Sprintf("performs %s best at energy level %d", taskType, level),
			Conditions: []types.Condition{
				{Field: "energy_level", Operator: types.OpEquals, Value: level},
			},
			Actions: []types.SuggestedAction{
				{Type: "suggest_task_type", Params: map[string]interface{}{
					"task_type":    taskType,
					"energy_level": level,
				}},
			},
			Frequency:  count,
			Confidence: float64(count) / float64(len(levelEvents)),
			Support:    float64(count) / float64(len(events)),
			IsActive:   true,
			MinedAt:    now,
		})
	}
	return patterns
}

// Patterns returns the stored patterns sorted by confidence descending,
// insertion order breaking ties.
func (m *Miner) Patterns() []*types.Pattern {
	out := make([]*types.Pattern, 0, len(m.patterns))
	indexOf := make(map[string]int, len(m.patternLog))
	for i, key := range m.patternLog {
		indexOf[key] = i
	}
	for _, key := range m.patternLog {
		if p, ok := m.patterns[key]; ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return indexOf[out[i].Key] < indexOf[out[j].Key]
	})
	return out
}

// Pattern looks up a single pattern by key
func (m *Miner) Pattern(key string) (*types.Pattern, bool) {
	p, ok := m.patterns[key]
	return p, ok
}

// ProcessingErrors returns the recorded mining failures
func (m *Miner) ProcessingErrors() []ProcessingError {
	out := make([]ProcessingError, len(m.procErrors))
	copy(out, m.procErrors)
	return out
}

func (m *Miner) recordError(message, context string) {
	m.procErrors = append(m.procErrors, ProcessingError{
		Timestamp: time.Now().UTC(),
		Message:   message,
		Context:   context,
	})
	if len(m.procErrors) > maxProcessingErrors {
		m.procErrors = m.procErrors[len(m.procErrors)-maxProcessingErrors:]
	}
	m.logger.Error("Mining pass failed", "context", context, "message", message)
}

// dominantEventType returns the most frequent event type and its count
func dominantEventType(events []types.UserEvent) (types.EventType, int) {
	counts := make(map[types.EventType]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	var best types.EventType
	bestCount := 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best = t
			bestCount = c
		}
	}
	return best, bestCount
}

// dominantTaskType returns the most frequent task type among
// task-related events and its count. With completedOnly set, only
// completed-task events are counted.
func dominantTaskType(events []types.UserEvent, completedOnly bool) (string, int) {
	counts := make(map[string]int)
	for _, ev := range events {
		if completedOnly {
			if ev.Type != types.EventTaskCompleted {
				continue
			}
		} else if !ev.Type.IsTaskEvent() {
			continue
		}
		if taskType, ok := ev.TaskType(); ok {
			counts[taskType]++
		}
	}
	best := ""
	bestCount := 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best = t
			bestCount = c
		}
	}
	return best, bestCount
}
