package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
	"github.com/aisti-labs/insight-engine/pkg/config"
	"github.com/aisti-labs/insight-engine/pkg/mqtt"
)

// Agent wires the engine to MQTT: it ingests events, reacts to context
// snapshots with automation passes and runs the periodic mining job.
type Agent struct {
	mqtt   mqtt.Client
	engine *Engine
	cfg    *config.Config
	logger *slog.Logger
}

// NewAgent creates the MQTT-facing agent around an engine
func NewAgent(mqttClient mqtt.Client, engine *Engine, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:   mqttClient,
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

// Start connects, subscribes and blocks until the context is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting insight agent")

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	subscriptions := map[string]mqtt.MessageHandler{
		mqtt.TopicEvents:        a.handleEvent,
		mqtt.TopicContext:       a.handleContext,
		mqtt.TopicMineTrigger:   a.handleMineTrigger,
		mqtt.TopicExportRequest: a.handleExportRequest,
	}
	for topic, handler := range subscriptions {
		if err := a.mqtt.Subscribe(topic, 0, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	a.logger.Info("Subscribed to topics", "count", len(subscriptions))

	go a.runMiningJob(ctx)

	<-ctx.Done()
	return nil
}

// Stop disconnects from the broker
func (a *Agent) Stop() {
	a.logger.Info("Stopping insight agent")
	a.mqtt.Disconnect()
}

// handleEvent ingests one user event published by the host application
func (a *Agent) handleEvent(msg mqtt.Message) {
	defer msg.Ack()

	var event types.UserEvent
	if err := json.Unmarshal(msg.Payload(), &event); err != nil {
		a.logger.Warn("Dropping malformed event payload",
			"topic", msg.Topic(), "error", err)
		return
	}

	stored, err := a.engine.LogEvent(event)
	if err != nil {
		a.logger.Warn("Event rejected", "topic", msg.Topic(), "error", err)
		return
	}
	a.logger.Debug("Event logged",
		"id", stored.ID, "type", string(stored.Type), "session", stored.SessionID)
}

// handleContext runs an automation pass against a published context
// snapshot and publishes the outcome.
func (a *Agent) handleContext(msg mqtt.Message) {
	defer msg.Ack()

	var snapshot types.Context
	if err := json.Unmarshal(msg.Payload(), &snapshot); err != nil {
		a.logger.Warn("Dropping malformed context payload", "error", err)
		return
	}

	result := a.engine.ProcessAutomations(&snapshot)

	for _, n := range result.Notifications {
		a.publishNotification(n)
	}
	if len(result.ExecutedAutomations) > 0 || len(result.GeneratedSuggestions) > 0 {
		a.publishSuggestions()
	}
}

// handleExportRequest publishes the full engine state dump, enriched
// with archived patterns when the archive is configured.
func (a *Agent) handleExportRequest(msg mqtt.Message) {
	defer msg.Ack()

	export := a.engine.ExportPatternData()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	archived, err := a.engine.ArchivedPatterns(ctx, 50)
	if err != nil {
		a.logger.Warn("Archived pattern read failed", "error", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"export":            export,
		"archived_patterns": archived,
	})
	if err != nil {
		a.logger.Warn("Failed to marshal export", "error", err)
		return
	}
	if err := a.mqtt.Publish(mqtt.TopicExport, 0, false, payload); err != nil {
		a.logger.Warn("Failed to publish export", "error", err)
	}
}

// handleMineTrigger runs an on-demand mining pass
func (a *Agent) handleMineTrigger(msg mqtt.Message) {
	defer msg.Ack()
	a.runMiningPass()
}

// runMiningJob triggers a mining pass on a fixed interval
func (a *Agent) runMiningJob(ctx context.Context) {
	interval := time.Duration(a.cfg.MiningIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("Mining job started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runMiningPass()
			a.engine.PruneSuggestions()
		}
	}
}

// runMiningPass mines patterns plus clusters and announces the result
func (a *Agent) runMiningPass() {
	patterns := a.engine.DetectPatterns()
	clusters := a.engine.ClusterTasks()

	summary := map[string]interface{}{
		"patterns": len(patterns),
		"clusters": len(clusters),
		"mined_at": time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		a.logger.Warn("Failed to marshal mining summary", "error", err)
		return
	}
	if err := a.mqtt.Publish(mqtt.TopicPatternsUpdated, 0, false, payload); err != nil {
		a.logger.Warn("Failed to publish mining summary", "error", err)
	}
}

// publishNotification sends one notification on its channel topic
func (a *Agent) publishNotification(n *types.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		a.logger.Warn("Failed to marshal notification", "error", err)
		return
	}
	topic := mqtt.NotifyTopic(n.Channel)
	if err := a.mqtt.Publish(topic, 0, false, payload); err != nil {
		a.logger.Warn("Failed to publish notification", "topic", topic, "error", err)
	}
}

// publishSuggestions announces the current live suggestions, retained
// so late subscribers see the latest set.
func (a *Agent) publishSuggestions() {
	suggestions := a.engine.ActiveSuggestions()
	payload, err := json.Marshal(suggestions)
	if err != nil {
		a.logger.Warn("Failed to marshal suggestions", "error", err)
		return
	}
	if err := a.mqtt.Publish(mqtt.TopicSuggestions, 0, true, payload); err != nil {
		a.logger.Warn("Failed to publish suggestions", "error", err)
	}
}
