package automation

import (
	"fmt"
	"math"
	"sort"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Reorder strategies
const (
	StrategyEnergyMatch          = "energy_match"
	StrategyTimeOptimal          = "time_optimal"
	StrategyCompletionLikelihood = "completion_likelihood"
)

// optimalTimes maps task types to the time slots they tend to go well
// in. Used by the time_optimal strategy for tasks the miner has no
// pattern for yet.
var optimalTimes = map[string]string{
	"deep_work": types.TimeMorning,
	"creative":  types.TimeMorning,
	"admin":     types.TimeAfternoon,
	"email":     types.TimeAfternoon,
	"meeting":   types.TimeAfternoon,
	"reading":   types.TimeEvening,
	"planning":  types.TimeEvening,
}

// ReorderTasks returns a new slice ordered by the named strategy. The
// input is never mutated.
func ReorderTasks(tasks []types.TaskSnapshot, strategy string, ctx *types.Context) ([]types.TaskSnapshot, error) {
	ordered := make([]types.TaskSnapshot, len(tasks))
	copy(ordered, tasks)

	switch strategy {
	case StrategyEnergyMatch:
		sort.SliceStable(ordered, func(i, j int) bool {
			return energyDistance(ordered[i], ctx) < energyDistance(ordered[j], ctx)
		})
	case StrategyTimeOptimal:
		sort.SliceStable(ordered, func(i, j int) bool {
			return timeScore(ordered[i], ctx) > timeScore(ordered[j], ctx)
		})
	case StrategyCompletionLikelihood:
		sort.SliceStable(ordered, func(i, j int) bool {
			return completionLikelihood(ordered[i], ctx) > completionLikelihood(ordered[j], ctx)
		})
	default:
		return nil, fmt.Errorf("unknown reorder strategy %q", strategy)
	}
	return ordered, nil
}

func energyDistance(task types.TaskSnapshot, ctx *types.Context) float64 {
	return math.Abs(float64(task.RequiredEnergy - ctx.EnergyLevel))
}

func timeScore(task types.TaskSnapshot, ctx *types.Context) float64 {
	if optimalTimes[task.Type] == ctx.TimeOfDay {
		return 1
	}
	return 0
}

// completionLikelihood blends energy fit and time fit into a rough
// probability of finishing the task now.
func completionLikelihood(task types.TaskSnapshot, ctx *types.Context) float64 {
	energyFit := 1 - energyDistance(task, ctx)/4
	if energyFit < 0 {
		energyFit = 0
	}
	return 0.5 + 0.3*energyFit + 0.2*timeScore(task, ctx)
}
