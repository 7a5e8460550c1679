package types

// TaskFeatures is the feature vector of a single observed task,
// extracted from task-related events.
type TaskFeatures struct {
	TaskID          string  `json:"task_id"`
	TaskType        string  `json:"task_type"`
	EnergyLevel     int     `json:"energy_level"`
	TimeOfDay       string  `json:"time_of_day"`
	DeviceType      string  `json:"device_type,omitempty"`
	DayOfWeek       int     `json:"day_of_week"`
	Completed       bool    `json:"completed"`
	DurationMinutes float64 `json:"duration_minutes,omitempty"`
}

// timeOfDayOrdinal maps time slots onto a numeric scale for the
// archived feature vector.
var timeOfDayOrdinal = map[string]float32{
	TimeMorning:   0,
	TimeAfternoon: 1,
	TimeEvening:   2,
	TimeNight:     3,
}

var deviceOrdinal = map[string]float32{
	"mobile":  0,
	"desktop": 1,
	"tablet":  2,
}

// Vector encodes the features numerically for archive storage and
// nearest-centroid diagnostics. Categorical task type is not encoded;
// clustering buckets by it before any comparison.
func (f TaskFeatures) Vector() []float32 {
	completed := float32(0)
	if f.Completed {
		completed = 1
	}
	return []float32{
		float32(f.EnergyLevel),
		timeOfDayOrdinal[f.TimeOfDay],
		deviceOrdinal[f.DeviceType],
		float32(f.DayOfWeek),
		completed,
		float32(f.DurationMinutes),
	}
}

// ClusterCharacteristics are aggregate stats of a cluster's members
type ClusterCharacteristics struct {
	CompletionRate     float64     `json:"completion_rate"`
	AvgDurationMinutes float64     `json:"avg_duration_minutes"`
	EnergyDistribution map[int]int `json:"energy_distribution"`
}

// TaskCluster groups structurally similar tasks. Fully recomputed on
// each clustering pass.
type TaskCluster struct {
	ID              string                 `json:"id"`
	Tasks           []TaskFeatures         `json:"tasks"`
	Centroid        TaskFeatures           `json:"centroid"`
	Characteristics ClusterCharacteristics `json:"characteristics"`
}
