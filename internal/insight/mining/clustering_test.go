package mining

import (
	"math"
	"testing"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

func TestTaskSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b types.TaskFeatures
		want float64
	}{
		{
			name: "identical tasks",
			a:    types.TaskFeatures{TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 2},
			b:    types.TaskFeatures{TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 2},
			want: 1.0,
		},
		{
			name: "nothing in common",
			a:    types.TaskFeatures{TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 0},
			b:    types.TaskFeatures{TaskType: "email", EnergyLevel: 1, TimeOfDay: "night", DeviceType: "mobile", DayOfWeek: 6},
			want: 0.0,
		},
		{
			name: "same type only",
			a:    types.TaskFeatures{TaskType: "admin", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 0},
			b:    types.TaskFeatures{TaskType: "admin", EnergyLevel: 1, TimeOfDay: "night", DeviceType: "mobile", DayOfWeek: 6},
			want: 0.4,
		},
		{
			name: "adjacent energy levels",
			a:    types.TaskFeatures{TaskType: "admin", EnergyLevel: 3, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 2},
			b:    types.TaskFeatures{TaskType: "admin", EnergyLevel: 4, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 2},
			want: 0.95, // 0.4 + 0.2*0.75 + 0.2 + 0.1 + 0.1
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TaskSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

func TestTaskSimilarityMissingDimensions(t *testing.T) {
	// Unknown energy and device drop out of both numerator and
	// denominator instead of counting as a mismatch.
	a := types.TaskFeatures{TaskType: "admin", TimeOfDay: "morning", DayOfWeek: 1}
	b := types.TaskFeatures{TaskType: "admin", TimeOfDay: "morning", DayOfWeek: 1}
	got := TaskSimilarity(a, b)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("similarity = %.4f, want 1.0", got)
	}
}

func TestClusterTasksMergesSimilarBuckets(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())

	// Two deep_work buckets differing by one energy level and the
	// time slot. Centroid similarity 0.75 > 0.7, so they merge.
	tasks := []types.TaskFeatures{
		{TaskID: "a1", TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 2, Completed: true},
		{TaskID: "a2", TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 2, Completed: true},
		{TaskID: "b1", TaskType: "deep_work", EnergyLevel: 4, TimeOfDay: "afternoon", DeviceType: "desktop", DayOfWeek: 2, Completed: false},
		{TaskID: "b2", TaskType: "deep_work", EnergyLevel: 4, TimeOfDay: "afternoon", DeviceType: "desktop", DayOfWeek: 2, Completed: true},
	}

	clusters := m.ClusterTasks(tasks)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if len(c.Tasks) != 4 {
		t.Errorf("members = %d, want 4", len(c.Tasks))
	}
	if c.Centroid.TaskType != "deep_work" {
		t.Errorf("centroid type = %q", c.Centroid.TaskType)
	}
	if math.Abs(c.Characteristics.CompletionRate-0.75) > 1e-9 {
		t.Errorf("completion rate = %.2f, want 0.75", c.Characteristics.CompletionRate)
	}
}

func TestClusterTasksSameBucketBelowThresholdStaysApart(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())

	// Same (type, time of day) bucket but opposite energy, device and
	// weekday: pairwise similarity 0.6, under the merge threshold. Each
	// task stays a singleton and both are dropped.
	tasks := []types.TaskFeatures{
		{TaskID: "s1", TaskType: "deep_work", EnergyLevel: 1, TimeOfDay: "morning", DeviceType: "mobile", DayOfWeek: 0},
		{TaskID: "s2", TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 6},
	}
	if got := TaskSimilarity(tasks[0], tasks[1]); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("pairwise similarity = %.4f, want 0.6", got)
	}

	clusters := m.ClusterTasks(tasks)
	if len(clusters) != 0 {
		t.Fatalf("clusters = %d, want 0", len(clusters))
	}
}

func TestClusterTasksKeepsDistinctTypesApart(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())

	tasks := []types.TaskFeatures{
		{TaskID: "d1", TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 1},
		{TaskID: "d2", TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 1},
		{TaskID: "e1", TaskType: "email", EnergyLevel: 2, TimeOfDay: "evening", DeviceType: "mobile", DayOfWeek: 5},
		{TaskID: "e2", TaskType: "email", EnergyLevel: 2, TimeOfDay: "evening", DeviceType: "mobile", DayOfWeek: 5},
	}

	clusters := m.ClusterTasks(tasks)
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
}

func TestClusterTasksDropsSingletons(t *testing.T) {
	m := NewMiner(DefaultConfig(), testLogger())

	tasks := []types.TaskFeatures{
		{TaskID: "only", TaskType: "deep_work", EnergyLevel: 5, TimeOfDay: "morning", DayOfWeek: 1},
		{TaskID: "e1", TaskType: "email", EnergyLevel: 2, TimeOfDay: "evening", DayOfWeek: 5},
		{TaskID: "e2", TaskType: "email", EnergyLevel: 2, TimeOfDay: "evening", DayOfWeek: 5},
	}

	clusters := m.ClusterTasks(tasks)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	if clusters[0].Centroid.TaskType != "email" {
		t.Errorf("surviving cluster type = %q, want email", clusters[0].Centroid.TaskType)
	}
}

func TestCentroidModeAndMean(t *testing.T) {
	tasks := []types.TaskFeatures{
		{TaskType: "admin", EnergyLevel: 2, TimeOfDay: "morning", DeviceType: "desktop", DayOfWeek: 1, DurationMinutes: 10},
		{TaskType: "admin", EnergyLevel: 3, TimeOfDay: "morning", DeviceType: "mobile", DayOfWeek: 2, DurationMinutes: 20},
		{TaskType: "admin", EnergyLevel: 3, TimeOfDay: "afternoon", DeviceType: "desktop", DayOfWeek: 3, DurationMinutes: 30},
	}

	c := centroid(tasks)
	if c.TaskType != "admin" || c.TimeOfDay != "morning" || c.DeviceType != "desktop" {
		t.Errorf("centroid modes = %q/%q/%q", c.TaskType, c.TimeOfDay, c.DeviceType)
	}
	if c.EnergyLevel != 3 { // round(8/3) = 3
		t.Errorf("centroid energy = %d, want 3", c.EnergyLevel)
	}
	if c.DayOfWeek != 2 {
		t.Errorf("centroid day = %d, want 2", c.DayOfWeek)
	}
	if math.Abs(c.DurationMinutes-20) > 1e-9 {
		t.Errorf("centroid duration = %.1f, want 20", c.DurationMinutes)
	}
}
