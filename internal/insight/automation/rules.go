package automation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// ruleFile is the YAML document shape of a rules file
type ruleFile struct {
	Rules []*types.AutomationRule `yaml:"rules"`
}

// LoadRules loads automation rules from a YAML file
func LoadRules(path string) ([]*types.AutomationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return LoadRulesFromBytes(data)
}

// LoadRulesFromBytes loads rules from byte data (useful for testing)
func LoadRulesFromBytes(data []byte) ([]*types.AutomationRule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	now := time.Now().UTC()
	for _, rule := range file.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %q has no id", rule.Name)
		}
		if len(rule.Actions) == 0 {
			return nil, fmt.Errorf("rule %s has no actions", rule.ID)
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = now
		}
	}
	return file.Rules, nil
}

// DefaultRules returns the built-in rule set used when no rules file is
// configured.
func DefaultRules() []*types.AutomationRule {
	now := time.Now().UTC()
	return []*types.AutomationRule{
		{
			ID:   "low-energy-reorder",
			Name: "Reorder tasks when energy drops",
			Trigger: types.Trigger{
				Type:      types.TriggerEvent,
				EventType: types.EventMoodChange,
				Conditions: []types.Condition{
					{Field: "energy_level", Operator: types.OpLess, Value: 3},
				},
			},
			Actions: []types.RuleAction{
				{Type: types.ActionReorderTasks, Params: map[string]interface{}{
					"strategy": StrategyEnergyMatch,
				}},
			},
			IsActive:        true,
			CooldownMinutes: 60,
			SuccessRate:     0.5,
			CreatedAt:       now,
		},
		{
			ID:   "break-reminder",
			Name: "Break after a long stretch",
			Trigger: types.Trigger{
				Type: types.TriggerTime,
				TimeConditions: []types.TimeCondition{
					{Type: types.TimeCondWorkingMinutes, Value: 90},
				},
			},
			Actions: []types.RuleAction{
				{Type: types.ActionScheduleBreak, Params: map[string]interface{}{
					"duration_minutes": 10,
				}},
			},
			IsActive:        true,
			CooldownMinutes: 45,
			SuccessRate:     0.5,
			CreatedAt:       now,
		},
		{
			ID:   "evening-wind-down",
			Name: "Wind down in the evening",
			Trigger: types.Trigger{
				Type: types.TriggerTime,
				TimeConditions: []types.TimeCondition{
					{Type: types.TimeCondTimeOfDay, Value: types.TimeEvening},
				},
			},
			Actions: []types.RuleAction{
				{Type: types.ActionAutoPostpone, Params: map[string]interface{}{}},
				{Type: types.ActionNotify, Params: map[string]interface{}{
					"channel": "wellbeing",
					"title":   "Evening wind-down",
					"body":    "High-energy tasks moved to tomorrow",
				}},
			},
			IsActive:        true,
			CooldownMinutes: 240,
			SuccessRate:     0.5,
			CreatedAt:       now,
		},
	}
}
