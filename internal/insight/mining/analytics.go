package mining

import (
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Analytics is an aggregate snapshot over the observed events and the
// miner's current state.
type Analytics struct {
	TotalEvents        int               `json:"total_events"`
	EventsByType       map[string]int    `json:"events_by_type"`
	EventsByTimeOfDay  map[string]int    `json:"events_by_time_of_day"`
	TaskCompletionRate float64           `json:"task_completion_rate"`
	AvgEnergyLevel     float64           `json:"avg_energy_level"`
	PatternCount       int               `json:"pattern_count"`
	PatternsByType     map[string]int    `json:"patterns_by_type"`
	ClusterCount       int               `json:"cluster_count"`
	LastMiningPass     time.Time         `json:"last_mining_pass"`
	ProcessingErrors   []ProcessingError `json:"processing_errors,omitempty"`
	TopPatterns        []*types.Pattern  `json:"top_patterns,omitempty"`
}

// Analyze summarizes the event slice together with the miner state
func (m *Miner) Analyze(events []types.UserEvent) Analytics {
	a := Analytics{
		TotalEvents:       len(events),
		EventsByType:      make(map[string]int),
		EventsByTimeOfDay: make(map[string]int),
		PatternCount:      len(m.patterns),
		PatternsByType:    make(map[string]int),
		ClusterCount:      len(m.clusters),
		LastMiningPass:    m.lastPassAt,
		ProcessingErrors:  m.ProcessingErrors(),
	}
	for _, p := range m.patterns {
		a.PatternsByType[string(p.Type)]++
	}

	created, completed := 0, 0
	energySum, energyCount := 0, 0
	for _, ev := range events {
		a.EventsByType[string(ev.Type)]++
		if ev.Context.TimeOfDay != "" {
			a.EventsByTimeOfDay[ev.Context.TimeOfDay]++
		}
		switch ev.Type {
		case types.EventTaskCreated:
			created++
		case types.EventTaskCompleted:
			completed++
		}
		if ev.Context.EnergyLevel > 0 {
			energySum += ev.Context.EnergyLevel
			energyCount++
		}
	}
	if created > 0 {
		a.TaskCompletionRate = float64(completed) / float64(created)
	}
	if energyCount > 0 {
		a.AvgEnergyLevel = float64(energySum) / float64(energyCount)
	}

	patterns := m.Patterns()
	if len(patterns) > 5 {
		patterns = patterns[:5]
	}
	a.TopPatterns = patterns
	return a
}

// FeaturesFromEvents derives per-task feature sets from the task-related
// events in the slice. Completion and duration fold into the feature
// set of the task that the event references.
func FeaturesFromEvents(events []types.UserEvent) []types.TaskFeatures {
	byTask := make(map[string]*types.TaskFeatures)
	var order []string

	for _, ev := range events {
		if !ev.Type.IsTaskEvent() {
			continue
		}
		taskID, ok := ev.Metadata["task_id"].(string)
		if !ok || taskID == "" {
			continue
		}

		f, exists := byTask[taskID]
		if !exists {
			f = &types.TaskFeatures{TaskID: taskID}
			byTask[taskID] = f
			order = append(order, taskID)
		}

		if taskType, ok := ev.TaskType(); ok {
			f.TaskType = taskType
		}
		f.EnergyLevel = ev.Context.EnergyLevel
		f.TimeOfDay = ev.Context.TimeOfDay
		f.DeviceType = ev.Context.DeviceType
		f.DayOfWeek = ev.Context.DayOfWeek
		if ev.Type == types.EventTaskCompleted {
			f.Completed = true
			if d, ok := toFloat64(ev.Metadata["duration_minutes"]); ok {
				f.DurationMinutes = d
			}
		}
	}

	out := make([]types.TaskFeatures, 0, len(order))
	for _, id := range order {
		out = append(out, *byTask[id])
	}
	return out
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
