package automation

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// Config tunes the automation manager
type Config struct {
	SuccessRateStep     float64
	SuggestionRetention time.Duration
}

// DefaultConfig returns the reference defaults
func DefaultConfig() Config {
	return Config{
		SuccessRateStep:     0.1,
		SuggestionRetention: 24 * time.Hour,
	}
}

// PatternLookup resolves a pattern key against the current mined table
type PatternLookup func(key string) (*types.Pattern, bool)

// ApplyHandler runs one action of an applied suggestion against the
// context the apply was issued with
type ApplyHandler func(action types.SuggestedAction, ctx *types.Context)

// Result is the outcome of one automation pass
type Result struct {
	ExecutedAutomations  []string                 `json:"executed_automations"`
	GeneratedSuggestions []*types.SmartSuggestion `json:"generated_suggestions"`
	Notifications        []*types.Notification    `json:"notifications"`
}

// Manager owns the rule set and the suggestion registry. Not safe for
// concurrent use; the engine serializes access.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	rules     map[string]*types.AutomationRule
	ruleOrder []string

	suggestions map[string]*types.SmartSuggestion
	suggOrder   []string

	applyHandlers []ApplyHandler
}

// NewManager creates a manager with an empty rule set
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if cfg.SuccessRateStep <= 0 {
		cfg.SuccessRateStep = DefaultConfig().SuccessRateStep
	}
	if cfg.SuggestionRetention <= 0 {
		cfg.SuggestionRetention = DefaultConfig().SuggestionRetention
	}
	return &Manager{
		cfg:         cfg,
		logger:      logger,
		rules:       make(map[string]*types.AutomationRule),
		suggestions: make(map[string]*types.SmartSuggestion),
	}
}

// AddRule registers or replaces a rule. A replaced rule keeps its slot
// in the evaluation order.
func (m *Manager) AddRule(rule *types.AutomationRule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule %q has no id", rule.Name)
	}
	if len(rule.Actions) == 0 {
		return fmt.Errorf("rule %s has no actions", rule.ID)
	}
	if _, exists := m.rules[rule.ID]; !exists {
		m.ruleOrder = append(m.ruleOrder, rule.ID)
	}
	m.rules[rule.ID] = rule
	return nil
}

// Rules returns the rules in evaluation order
func (m *Manager) Rules() []*types.AutomationRule {
	out := make([]*types.AutomationRule, 0, len(m.ruleOrder))
	for _, id := range m.ruleOrder {
		out = append(out, m.rules[id])
	}
	return out
}

// SetRuleActive toggles a rule without removing it
func (m *Manager) SetRuleActive(id string, active bool) bool {
	rule, ok := m.rules[id]
	if !ok {
		return false
	}
	rule.IsActive = active
	return true
}

// OnApply registers a handler invoked whenever a suggestion is applied
func (m *Manager) OnApply(h ApplyHandler) {
	m.applyHandlers = append(m.applyHandlers, h)
}

// ProcessAutomations evaluates every rule against the supplied context.
// Rules run in registration order. A rule whose action fails stops its
// remaining actions, takes a success-rate penalty and does not count as
// executed; the pass continues with the next rule.
func (m *Manager) ProcessAutomations(ctx *types.Context, lookup PatternLookup, lastEvent *types.UserEvent, now time.Time) *Result {
	result := &Result{}

	for _, id := range m.ruleOrder {
		rule := m.rules[id]
		if !rule.IsActive || rule.OnCooldown(now) {
			continue
		}
		if !m.triggerFires(rule, ctx, lookup, lastEvent) {
			continue
		}

		var pending []*types.SmartSuggestion
		var notices []*types.Notification
		failed := false
		for _, action := range rule.Actions {
			s, n, err := m.executeAction(rule, action, ctx, now)
			if err != nil {
				m.logger.Warn("Automation action failed",
					"rule", rule.ID, "action", string(action.Type), "error", err)
				rule.SuccessRate = max(0, rule.SuccessRate-m.cfg.SuccessRateStep)
				failed = true
				break
			}
			if s != nil {
				pending = append(pending, s)
			}
			if n != nil {
				notices = append(notices, n)
			}
		}
		if failed {
			continue
		}

		triggeredAt := now
		rule.LastTriggered = &triggeredAt
		rule.TriggerCount++
		rule.SuccessRate = min(1, rule.SuccessRate+0.01)

		for _, s := range pending {
			m.registerSuggestion(s)
		}
		result.GeneratedSuggestions = append(result.GeneratedSuggestions, pending...)
		result.Notifications = append(result.Notifications, notices...)
		result.ExecutedAutomations = append(result.ExecutedAutomations, rule.ID)

		m.logger.Info("Automation executed",
			"rule", rule.ID,
			"suggestions", len(pending),
			"notifications", len(notices))
	}

	return result
}

func (m *Manager) triggerFires(rule *types.AutomationRule, ctx *types.Context, lookup PatternLookup, lastEvent *types.UserEvent) bool {
	t := rule.Trigger
	switch t.Type {
	case types.TriggerPattern:
		if lookup == nil {
			return false
		}
		p, ok := lookup(t.PatternKey)
		if !ok || !p.IsActive || !p.Matches(ctx.Field) {
			return false
		}
		return conditionsHold(t.Conditions, ctx, nil)

	case types.TriggerEvent:
		if lastEvent == nil || lastEvent.Type != t.EventType {
			return false
		}
		return conditionsHold(t.Conditions, ctx, lastEvent)

	case types.TriggerTime:
		for _, tc := range t.TimeConditions {
			if !timeConditionHolds(tc, ctx) {
				return false
			}
		}
		return conditionsHold(t.Conditions, ctx, nil)
	}
	return false
}

// conditionsHold evaluates extra trigger conditions. Fields resolve
// against the event metadata first when an event is in scope, then
// against the context.
func conditionsHold(conditions []types.Condition, ctx *types.Context, event *types.UserEvent) bool {
	for _, cond := range conditions {
		actual, ok := resolveField(cond.Field, ctx, event)
		if !ok || !types.EvaluateCondition(cond, actual) {
			return false
		}
	}
	return true
}

func resolveField(field string, ctx *types.Context, event *types.UserEvent) (interface{}, bool) {
	if event != nil {
		if v, ok := event.Metadata[field]; ok {
			return v, true
		}
	}
	return ctx.Field(field)
}

func timeConditionHolds(tc types.TimeCondition, ctx *types.Context) bool {
	switch tc.Type {
	case types.TimeCondTimeOfDay:
		return fmt.Sprintf("%v", tc.Value) == ctx.TimeOfDay
	case types.TimeCondDayOfWeek:
		v, ok := asInt(tc.Value)
		return ok && v == ctx.DayOfWeek
	case types.TimeCondMinEnergy:
		v, ok := asInt(tc.Value)
		return ok && ctx.EnergyLevel >= v
	case types.TimeCondWorkingMinutes:
		v, ok := asInt(tc.Value)
		return ok && ctx.WorkingMinutes >= v
	}
	return false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func (m *Manager) registerSuggestion(s *types.SmartSuggestion) {
	if _, exists := m.suggestions[s.ID]; !exists {
		m.suggOrder = append(m.suggOrder, s.ID)
	}
	m.suggestions[s.ID] = s
}

// AddSuggestion registers an externally produced suggestion, such as
// one derived directly from a mined pattern.
func (m *Manager) AddSuggestion(s *types.SmartSuggestion) {
	m.registerSuggestion(s)
}

// ActiveSuggestions returns the live suggestions, highest confidence
// first. Expired entries are filtered here, never eagerly removed.
func (m *Manager) ActiveSuggestions(now time.Time) []*types.SmartSuggestion {
	var out []*types.SmartSuggestion
	for _, id := range m.suggOrder {
		if s := m.suggestions[id]; s.Active(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// ApplySuggestion marks a suggestion applied and runs every registered
// handler for each of its actions against the supplied context. Returns
// false when the suggestion is unknown or already inactive; a second
// apply is a no-op.
func (m *Manager) ApplySuggestion(id string, ctx *types.Context) bool {
	s, ok := m.suggestions[id]
	if !ok || !s.IsActive {
		return false
	}
	s.IsActive = false
	for _, action := range s.Actions {
		for _, h := range m.applyHandlers {
			h(action, ctx)
		}
	}
	m.logger.Info("Suggestion applied", "suggestion", id, "type", s.Type, "actions", len(s.Actions))
	return true
}

// DismissSuggestion marks a suggestion dismissed. Same guard semantics
// as ApplySuggestion, without handlers.
func (m *Manager) DismissSuggestion(id string) bool {
	s, ok := m.suggestions[id]
	if !ok || !s.IsActive {
		return false
	}
	s.IsActive = false
	m.logger.Info("Suggestion dismissed", "suggestion", id)
	return true
}

// PruneSuggestions drops terminal suggestions older than the retention
// window so the registry stays bounded.
func (m *Manager) PruneSuggestions(now time.Time) int {
	cutoff := now.Add(-m.cfg.SuggestionRetention)
	kept := m.suggOrder[:0]
	removed := 0
	for _, id := range m.suggOrder {
		s := m.suggestions[id]
		if !s.Active(now) && s.CreatedAt.Before(cutoff) {
			delete(m.suggestions, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.suggOrder = kept
	return removed
}

// Suggestions returns every stored suggestion regardless of state, in
// registration order. Used for snapshots and export.
func (m *Manager) Suggestions() []*types.SmartSuggestion {
	out := make([]*types.SmartSuggestion, 0, len(m.suggOrder))
	for _, id := range m.suggOrder {
		out = append(out, m.suggestions[id])
	}
	return out
}

// RestoreSuggestions replaces the registry from a snapshot
func (m *Manager) RestoreSuggestions(snapshot []*types.SmartSuggestion) {
	m.suggestions = make(map[string]*types.SmartSuggestion, len(snapshot))
	m.suggOrder = m.suggOrder[:0]
	for _, s := range snapshot {
		m.registerSuggestion(s)
	}
}
