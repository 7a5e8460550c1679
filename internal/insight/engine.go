package insight

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aisti-labs/insight-engine/internal/insight/automation"
	"github.com/aisti-labs/insight-engine/internal/insight/buffer"
	"github.com/aisti-labs/insight-engine/internal/insight/mining"
	"github.com/aisti-labs/insight-engine/internal/insight/timectx"
	"github.com/aisti-labs/insight-engine/internal/insight/types"
	"github.com/aisti-labs/insight-engine/pkg/config"
)

// defaultEnergyLevel is assumed when an event carries no energy reading
const defaultEnergyLevel = 3

// sessionIdleGap starts a new session after this much inactivity
const sessionIdleGap = 30 * time.Minute

// Engine ties the buffer, the miner and the automation manager together
// behind one mutex. Store and archive are optional; a nil store makes
// the engine purely in-memory.
type Engine struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger *slog.Logger

	buffer     *buffer.Buffer
	miner      *mining.Miner
	automation *automation.Manager
	deriver    *timectx.Deriver

	store   *Store
	archive *Archive

	sessionID   string
	lastEventAt time.Time
}

// NewEngine builds an engine from the service configuration
func NewEngine(cfg *config.Config, logger *slog.Logger, store *Store, archive *Archive) *Engine {
	bufCfg := buffer.Config{
		Capacity:          cfg.BufferCapacity,
		MaxSequenceLength: cfg.MaxSequenceLength,
		PruneThreshold:    cfg.PruneThreshold,
		MinSequenceCount:  cfg.MinSequenceCount,
	}
	mineCfg := mining.Config{
		MinFrequency:        cfg.MinPatternFrequency,
		MaxSequenceLength:   cfg.MaxSequenceLength,
		SequenceWindow:      time.Duration(cfg.SequenceWindowHours) * time.Hour,
		MaxSuggestions:      cfg.MaxSuggestions,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
	autoCfg := automation.Config{
		SuccessRateStep:     cfg.SuccessRateStep,
		SuggestionRetention: time.Duration(cfg.SuggestionRetentionH) * time.Hour,
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		buffer:     buffer.New(bufCfg, logger),
		miner:      mining.NewMiner(mineCfg, logger),
		automation: automation.NewManager(autoCfg, logger),
		deriver:    timectx.NewDeriver(cfg.Latitude, cfg.Longitude, cfg.DaylightAware, logger),
		store:      store,
		archive:    archive,
	}
}

// LogEvent validates, completes and buffers one user event. Missing
// id, timestamp, session and context fields are filled in; a malformed
// event is rejected and never enters the buffer.
func (e *Engine) LogEvent(event types.UserEvent) (types.UserEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Context.EnergyLevel == 0 {
		event.Context.EnergyLevel = defaultEnergyLevel
	}
	if event.Context.TimeOfDay == "" {
		event.Context = e.deriver.Derive(event.Timestamp,
			event.Context.EnergyLevel, event.Context.DeviceType, event.Context.Location)
	}
	if event.SessionID == "" {
		event.SessionID = e.currentSession(event.Timestamp)
	}

	if err := types.ValidateEvent(&event); err != nil {
		return types.UserEvent{}, fmt.Errorf("event rejected: %w", err)
	}

	e.buffer.Append(event)
	e.lastEventAt = event.Timestamp

	if e.store != nil {
		snapshot, err := e.buffer.Snapshot().Marshal()
		if err != nil {
			e.logger.Warn("Failed to marshal buffer snapshot", "error", err)
		} else {
			e.store.background("buffer-snapshot", func(ctx context.Context) error {
				return e.store.SaveBufferSnapshot(ctx, snapshot)
			})
		}
		e.store.background("event-mirror", func(ctx context.Context) error {
			return e.store.MirrorEvent(ctx, event)
		})
	}

	return event, nil
}

// currentSession rotates the session id after an idle gap. Called with
// the engine lock held.
func (e *Engine) currentSession(now time.Time) string {
	if e.sessionID == "" || now.Sub(e.lastEventAt) > sessionIdleGap {
		e.sessionID = uuid.New().String()
	}
	return e.sessionID
}

// DetectPatterns runs a full mining pass over the buffered events
func (e *Engine) DetectPatterns() []*types.Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()

	patterns := e.miner.DetectPatterns(e.buffer.Chronological())

	if e.archive != nil && len(patterns) > 0 {
		archived := make([]*types.Pattern, len(patterns))
		copy(archived, patterns)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := e.archive.ArchivePatterns(ctx, archived); err != nil {
				e.logger.Warn("Pattern archive failed", "error", err)
			}
		}()
	}

	return patterns
}

// ClusterTasks derives task features from the buffer and groups them
func (e *Engine) ClusterTasks() []*types.TaskCluster {
	e.mu.Lock()
	defer e.mu.Unlock()

	features := mining.FeaturesFromEvents(e.buffer.Chronological())
	clusters := e.miner.ClusterTasks(features)

	if e.archive != nil && len(clusters) > 0 {
		archived := make([]*types.TaskCluster, len(clusters))
		copy(archived, clusters)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := e.archive.ArchiveClusters(ctx, archived); err != nil {
				e.logger.Warn("Cluster archive failed", "error", err)
			}
		}()
	}

	return clusters
}

// SmartSuggestions matches the mined patterns against the supplied
// context. The returned suggestions are registered so they can later
// be applied or dismissed.
func (e *Engine) SmartSuggestions(ctx *types.Context) []*types.SmartSuggestion {
	e.mu.Lock()
	defer e.mu.Unlock()

	suggestions := e.miner.Suggest(ctx, time.Now())
	for _, s := range suggestions {
		e.automation.AddSuggestion(s)
	}
	e.persistSuggestions()
	return suggestions
}

// ProcessAutomations evaluates every automation rule against the
// supplied context. The most recent buffered event drives event
// triggers.
func (e *Engine) ProcessAutomations(ctx *types.Context) *automation.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastEvent *types.UserEvent
	if recent := e.buffer.Recent(1); len(recent) == 1 {
		lastEvent = &recent[0]
	}

	result := e.automation.ProcessAutomations(ctx, e.miner.Pattern, lastEvent, time.Now())
	if len(result.GeneratedSuggestions) > 0 {
		e.persistSuggestions()
	}
	return result
}

// ApplySuggestion marks a suggestion applied and runs its actions
// against the supplied context. Returns false for an unknown or
// already terminal suggestion.
func (e *Engine) ApplySuggestion(id string, ctx *types.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ok := e.automation.ApplySuggestion(id, ctx)
	if ok {
		e.persistSuggestions()
	}
	return ok
}

// DismissSuggestion marks a suggestion dismissed
func (e *Engine) DismissSuggestion(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ok := e.automation.DismissSuggestion(id)
	if ok {
		e.persistSuggestions()
	}
	return ok
}

// ActiveSuggestions returns the live suggestions, best first
func (e *Engine) ActiveSuggestions() []*types.SmartSuggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.automation.ActiveSuggestions(time.Now())
}

// AddRule registers an automation rule
func (e *Engine) AddRule(rule *types.AutomationRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.automation.AddRule(rule)
}

// Rules returns the registered automation rules in evaluation order
func (e *Engine) Rules() []*types.AutomationRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.automation.Rules()
}

// OnApply registers a handler invoked when a suggestion is applied
func (e *Engine) OnApply(h automation.ApplyHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.automation.OnApply(h)
}

// Patterns returns the current pattern table, best first
func (e *Engine) Patterns() []*types.Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.miner.Patterns()
}

// AnalyticsReport extends the miner's analytics with sequence-table
// statistics only the buffer can provide.
type AnalyticsReport struct {
	mining.Analytics
	SequenceCount int               `json:"sequence_count"`
	TopSequences  []buffer.Sequence `json:"top_sequences,omitempty"`
}

// Analytics summarizes the buffered events, the sequence table and the
// miner state.
func (e *Engine) Analytics() AnalyticsReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyticsLocked()
}

func (e *Engine) analyticsLocked() AnalyticsReport {
	sequences := e.buffer.Sequences()
	top := make([]buffer.Sequence, 0, len(sequences))
	for _, seq := range sequences {
		top = append(top, seq)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Frequency != top[j].Frequency {
			return top[i].Frequency > top[j].Frequency
		}
		return top[i].Key < top[j].Key
	})
	if len(top) > 5 {
		top = top[:5]
	}

	return AnalyticsReport{
		Analytics:     e.miner.Analyze(e.buffer.Chronological()),
		SequenceCount: len(sequences),
		TopSequences:  top,
	}
}

// ExportData is the full state dump produced by ExportPatternData
type ExportData struct {
	Patterns     []*types.Pattern        `json:"patterns"`
	Automations  []*types.AutomationRule `json:"automations"`
	TaskClusters []*types.TaskCluster    `json:"task_clusters"`
	Analytics    AnalyticsReport         `json:"analytics"`
	RecentEvents []types.UserEvent       `json:"recent_events"`
	ExportedAt   time.Time               `json:"exported_at"`
}

// ExportPatternData collects everything the engine has learned
func (e *Engine) ExportPatternData() *ExportData {
	e.mu.Lock()
	defer e.mu.Unlock()

	return &ExportData{
		Patterns:     e.miner.Patterns(),
		Automations:  e.automation.Rules(),
		TaskClusters: e.miner.Clusters(),
		Analytics:    e.analyticsLocked(),
		RecentEvents: e.buffer.Recent(20),
		ExportedAt:   time.Now().UTC(),
	}
}

// ArchivedPatterns reads back the newest archived patterns for
// diagnostics. Returns nil without error when no archive is configured.
func (e *Engine) ArchivedPatterns(ctx context.Context, limit int) ([]*ArchivedPattern, error) {
	if e.archive == nil {
		return nil, nil
	}
	return e.archive.RecentPatterns(ctx, limit)
}

// PruneSuggestions drops terminal suggestions past retention
func (e *Engine) PruneSuggestions() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := e.automation.PruneSuggestions(time.Now())
	if removed > 0 {
		e.persistSuggestions()
	}
	return removed
}

// Restore loads the buffer and suggestion state saved by a previous
// run. Missing snapshots are not an error; a corrupt one is.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.store.LoadBufferSnapshot(ctx)
	if err != nil {
		return err
	}
	if data != nil {
		if err := e.buffer.Restore(data); err != nil {
			return fmt.Errorf("failed to restore buffer: %w", err)
		}
		e.logger.Info("Buffer restored", "events", e.buffer.Len())
	}

	suggestions, err := e.store.LoadSuggestions(ctx)
	if err != nil {
		return err
	}
	if len(suggestions) > 0 {
		e.automation.RestoreSuggestions(suggestions)
		e.logger.Info("Suggestions restored", "count", len(suggestions))
	}

	return nil
}

// persistSuggestions saves the suggestion registry in the background.
// Called with the engine lock held; the snapshot is copied under the
// lock so the save goroutine never reads a suggestion the engine is
// mutating.
func (e *Engine) persistSuggestions() {
	if e.store == nil {
		return
	}
	snapshot := copySuggestions(e.automation.Suggestions())
	e.store.background("suggestion-snapshot", func(ctx context.Context) error {
		return e.store.SaveSuggestions(ctx, snapshot)
	})
}

func copySuggestions(live []*types.SmartSuggestion) []*types.SmartSuggestion {
	out := make([]*types.SmartSuggestion, len(live))
	for i, s := range live {
		c := *s
		c.Actions = append([]types.SuggestedAction(nil), s.Actions...)
		out[i] = &c
	}
	return out
}
