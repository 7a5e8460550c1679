package automation

import (
	"testing"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

func reorderFixture() []types.TaskSnapshot {
	return []types.TaskSnapshot{
		{ID: "deep", Type: "deep_work", RequiredEnergy: 5},
		{ID: "mail", Type: "email", RequiredEnergy: 2},
		{ID: "plan", Type: "planning", RequiredEnergy: 3},
	}
}

func TestReorderEnergyMatch(t *testing.T) {
	ctx := &types.Context{EnergyLevel: 2, TimeOfDay: types.TimeMorning}
	ordered, err := ReorderTasks(reorderFixture(), StrategyEnergyMatch, ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mail", "plan", "deep"}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(ordered), want)
		}
	}
}

func TestReorderTimeOptimal(t *testing.T) {
	ctx := &types.Context{EnergyLevel: 3, TimeOfDay: types.TimeMorning}
	ordered, err := ReorderTasks(reorderFixture(), StrategyTimeOptimal, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ordered[0].ID != "deep" {
		t.Errorf("order = %v, want deep_work first in the morning", ids(ordered))
	}
}

func TestReorderCompletionLikelihood(t *testing.T) {
	// Morning at full energy: deep_work has both a perfect energy fit
	// and the optimal slot.
	ctx := &types.Context{EnergyLevel: 5, TimeOfDay: types.TimeMorning}
	ordered, err := ReorderTasks(reorderFixture(), StrategyCompletionLikelihood, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ordered[0].ID != "deep" {
		t.Errorf("order = %v, want deep first", ids(ordered))
	}
}

func TestReorderUnknownStrategy(t *testing.T) {
	if _, err := ReorderTasks(reorderFixture(), "alphabetical", &types.Context{}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	tasks := reorderFixture()
	ctx := &types.Context{EnergyLevel: 2}
	if _, err := ReorderTasks(tasks, StrategyEnergyMatch, ctx); err != nil {
		t.Fatal(err)
	}
	if tasks[0].ID != "deep" {
		t.Errorf("input mutated: %v", ids(tasks))
	}
}

func ids(tasks []types.TaskSnapshot) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}
