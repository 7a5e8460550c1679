package mqtt

import "fmt"

// Topic layout for the insight engine.
const (
	// Incoming user-action events published by the host application.
	// Pattern: insight/events/{event_type}
	TopicEvents = "insight/events/+"

	// Manual mining trigger (empty payload or {"window_hours": N})
	TopicMineTrigger = "insight/mine"

	// Context snapshots published by the host application. Each one
	// drives an automation pass.
	TopicContext = "insight/context"

	// Published after each automation pass with the live suggestions
	TopicSuggestions = "insight/suggestions"

	// Outgoing notification payloads produced by automation passes.
	// Pattern: insight/notify/{channel}
	TopicNotifyBase = "insight/notify"

	// Published after each mining pass with a pattern summary
	TopicPatternsUpdated = "insight/patterns/updated"

	// Export request (empty payload) and the resulting full state dump
	TopicExportRequest = "insight/export/request"
	TopicExport        = "insight/export"
)

// EventTopic constructs the topic for a specific event type
func EventTopic(eventType string) string {
	return fmt.Sprintf("insight/events/%s", eventType)
}

// NotifyTopic constructs the outgoing notification topic for a channel
func NotifyTopic(channel string) string {
	return fmt.Sprintf("%s/%s", TopicNotifyBase, channel)
}
