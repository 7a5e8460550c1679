package automation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Per-type suggestion lifetimes. A break reminder is stale in half an
// hour; a reordered task list stays useful for most of a work day.
var actionExpiry = map[types.RuleActionType]time.Duration{
	types.ActionSuggest:        2 * time.Hour,
	types.ActionReorderTasks:   4 * time.Hour,
	types.ActionScheduleBreak:  30 * time.Minute,
	types.ActionEnergyOptimize: 1 * time.Hour,
	types.ActionAutoPostpone:   2 * time.Hour,
}

// executeAction synthesizes the outcome of a single rule action. Every
// action type except notify produces a suggestion; notify produces a
// notification instead.
func (m *Manager) executeAction(rule *types.AutomationRule, action types.RuleAction, ctx *types.Context, now time.Time) (*types.SmartSuggestion, *types.Notification, error) {
	switch action.Type {
	case types.ActionSuggest:
		return m.buildSuggest(rule, action, now), nil, nil
	case types.ActionReorderTasks:
		s, err := m.buildReorder(rule, action, ctx, now)
		return s, nil, err
	case types.ActionScheduleBreak:
		return m.buildScheduleBreak(rule, action, ctx, now), nil, nil
	case types.ActionEnergyOptimize:
		s, err := m.buildEnergyOptimize(rule, action, ctx, now)
		return s, nil, err
	case types.ActionAutoPostpone:
		s, err := m.buildAutoPostpone(rule, action, ctx, now)
		return s, nil, err
	case types.ActionNotify:
		return nil, m.buildNotification(rule, action, now), nil
	}
	return nil, nil, fmt.Errorf("unknown action type %q", action.Type)
}

func (m *Manager) newSuggestion(rule *types.AutomationRule, actionType types.RuleActionType, title, description string, actions []types.SuggestedAction, now time.Time) *types.SmartSuggestion {
	return &types.SmartSuggestion{
		ID:          uuid.New().String(),
		Type:        string(actionType),
		Title:       title,
		Description: description,
		Confidence:  rule.SuccessRate,
		Actions:     actions,
		CreatedAt:   now,
		ExpiresAt:   now.Add(actionExpiry[actionType]),
		IsActive:    true,
		SourceRule:  rule.ID,
	}
}

func (m *Manager) buildSuggest(rule *types.AutomationRule, action types.RuleAction, now time.Time) *types.SmartSuggestion {
	title := stringParam(action.Params, "title", rule.Name)
	description := stringParam(action.Params, "description", "")
	return m.newSuggestion(rule, types.ActionSuggest, title, description, []types.SuggestedAction{
		{Type: "suggest", Params: action.Params},
	}, now)
}

func (m *Manager) buildReorder(rule *types.AutomationRule, action types.RuleAction, ctx *types.Context, now time.Time) (*types.SmartSuggestion, error) {
	strategy := stringParam(action.Params, "strategy", StrategyEnergyMatch)
	ordered, err := ReorderTasks(ctx.Tasks, strategy, ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ordered))
	for i, task := range ordered {
		ids[i] = task.ID
	}
	return m.newSuggestion(rule, types.ActionReorderTasks,
		stringParam(action.Params, "title", "Reorder your task list"),
		fmt.Sprintf("Ordered %d tasks by %s", len(ordered), strategy),
		[]types.SuggestedAction{
			{Type: "reorder_tasks", Params: map[string]interface{}{
				"strategy": strategy,
				"task_ids": ids,
			}},
		}, now), nil
}

func (m *Manager) buildScheduleBreak(rule *types.AutomationRule, action types.RuleAction, ctx *types.Context, now time.Time) *types.SmartSuggestion {
	minutes := intParam(action.Params, "duration_minutes", 10)
	return m.newSuggestion(rule, types.ActionScheduleBreak,
		"Time for a break",
		fmt.Sprintf("You have been working for %d minutes", ctx.WorkingMinutes),
		[]types.SuggestedAction{
			{Type: "schedule_break", Params: map[string]interface{}{
				"duration_minutes": minutes,
			}},
		}, now)
}

// buildEnergyOptimize picks the open tasks whose required energy best
// matches the current level.
func (m *Manager) buildEnergyOptimize(rule *types.AutomationRule, action types.RuleAction, ctx *types.Context, now time.Time) (*types.SmartSuggestion, error) {
	if ctx.EnergyLevel == 0 {
		return nil, fmt.Errorf("energy level unknown")
	}
	ordered, err := ReorderTasks(ctx.Tasks, StrategyEnergyMatch, ctx)
	if err != nil {
		return nil, err
	}
	limit := intParam(action.Params, "limit", 3)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	ids := make([]string, len(ordered))
	for i, task := range ordered {
		ids[i] = task.ID
	}
	return m.newSuggestion(rule, types.ActionEnergyOptimize,
		"Tasks that fit your energy",
		fmt.Sprintf("Best matches for energy level %d", ctx.EnergyLevel),
		[]types.SuggestedAction{
			{Type: "energy_optimize", Params: map[string]interface{}{
				"energy_level": ctx.EnergyLevel,
				"task_ids":     ids,
			}},
		}, now), nil
}

// buildAutoPostpone proposes pushing the tasks whose energy demand
// exceeds the current level.
func (m *Manager) buildAutoPostpone(rule *types.AutomationRule, action types.RuleAction, ctx *types.Context, now time.Time) (*types.SmartSuggestion, error) {
	if ctx.EnergyLevel == 0 {
		return nil, fmt.Errorf("energy level unknown")
	}
	var ids []string
	for _, task := range ctx.Tasks {
		if task.RequiredEnergy > ctx.EnergyLevel {
			ids = append(ids, task.ID)
		}
	}
	return m.newSuggestion(rule, types.ActionAutoPostpone,
		"Postpone demanding tasks",
		fmt.Sprintf("%d tasks need more energy than you have right now", len(ids)),
		[]types.SuggestedAction{
			{Type: "auto_postpone", Params: map[string]interface{}{
				"task_ids": ids,
			}},
		}, now), nil
}

func (m *Manager) buildNotification(rule *types.AutomationRule, action types.RuleAction, now time.Time) *types.Notification {
	return &types.Notification{
		ID:        uuid.New().String(),
		Channel:   stringParam(action.Params, "channel", "general"),
		Title:     stringParam(action.Params, "title", rule.Name),
		Body:      stringParam(action.Params, "body", ""),
		Priority:  stringParam(action.Params, "priority", "normal"),
		CreatedAt: now,
	}
}

func stringParam(params map[string]interface{}, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if v, ok := asInt(params[key]); ok {
		return v
	}
	return fallback
}
