package mining

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
)

// suggestionTTL is how long pattern-derived suggestions stay live
const suggestionTTL = 24 * time.Hour

// Suggest matches the stored patterns against the supplied context and
// returns at most MaxSuggestions, highest confidence first. Only active
// patterns whose every condition holds produce a suggestion.
func (m *Miner) Suggest(ctx *types.Context, now time.Time) []*types.SmartSuggestion {
	var suggestions []*types.SmartSuggestion
	for _, p := range m.Patterns() {
		if !p.IsActive || !p.Matches(ctx.Field) {
			continue
		}
		suggestions = append(suggestions, suggestionFromPattern(p, now))
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if m.cfg.MaxSuggestions > 0 && len(suggestions) > m.cfg.MaxSuggestions {
		suggestions = suggestions[:m.cfg.MaxSuggestions]
	}
	return suggestions
}

func suggestionFromPattern(p *types.Pattern, now time.Time) *types.SmartSuggestion {
	s := &types.SmartSuggestion{
		ID:          uuid.New().String(),
		Type:        string(p.Type),
		Title:       p.Name,
		Description: fmt.Sprintf("Observed %d times (confidence %.0f%%)", p.Frequency, p.Confidence*100),
		Confidence:  p.Confidence,
		Actions:     p.Actions,
		CreatedAt:   now,
		ExpiresAt:   now.Add(suggestionTTL),
		IsActive:    true,
	}
	return s
}
