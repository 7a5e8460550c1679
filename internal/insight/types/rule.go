package types

import "time"

// TriggerType identifies what an automation rule reacts to
type TriggerType string

const (
	TriggerPattern TriggerType = "pattern"
	TriggerEvent   TriggerType = "event"
	TriggerTime    TriggerType = "time"
)

// TimeCondition types
const (
	TimeCondTimeOfDay      = "time_of_day"
	TimeCondDayOfWeek      = "day_of_week"
	TimeCondMinEnergy      = "min_energy"
	TimeCondWorkingMinutes = "working_minutes"
)

// TimeCondition is one clause of a time trigger. All clauses must hold.
type TimeCondition struct {
	Type  string      `json:"type" yaml:"type"`
	Value interface{} `json:"value" yaml:"value"`
}

// Trigger describes when a rule fires
type Trigger struct {
	Type           TriggerType     `json:"type" yaml:"type"`
	PatternKey     string          `json:"pattern_key,omitempty" yaml:"pattern_key,omitempty"`
	EventType      EventType       `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	Conditions     []Condition     `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	TimeConditions []TimeCondition `json:"time_conditions,omitempty" yaml:"time_conditions,omitempty"`
}

// RuleActionType identifies a rule action synthesis routine
type RuleActionType string

const (
	ActionSuggest        RuleActionType = "suggest"
	ActionReorderTasks   RuleActionType = "reorder_tasks"
	ActionScheduleBreak  RuleActionType = "schedule_break"
	ActionEnergyOptimize RuleActionType = "energy_optimize"
	ActionNotify         RuleActionType = "notify"
	ActionAutoPostpone   RuleActionType = "auto_postpone"
)

// RuleAction is one ordered operation executed when a rule fires
type RuleAction struct {
	Type   RuleActionType         `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// AutomationRule is a standing behavior. Never auto-deleted, only
// deactivated.
type AutomationRule struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	Trigger         Trigger      `json:"trigger" yaml:"trigger"`
	Actions         []RuleAction `json:"actions" yaml:"actions"`
	IsActive        bool         `json:"is_active" yaml:"is_active"`
	CooldownMinutes int          `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	LastTriggered   *time.Time   `json:"last_triggered,omitempty" yaml:"-"`
	TriggerCount    int          `json:"trigger_count" yaml:"-"`
	SuccessRate     float64      `json:"success_rate" yaml:"-"`
	CreatedAt       time.Time    `json:"created_at" yaml:"-"`
}

// OnCooldown reports whether the rule's cooldown gate blocks evaluation
func (r *AutomationRule) OnCooldown(now time.Time) bool {
	if r.LastTriggered == nil {
		return false
	}
	return now.Sub(*r.LastTriggered) < time.Duration(r.CooldownMinutes)*time.Minute
}
