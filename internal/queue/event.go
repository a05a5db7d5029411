// Package queue defines message payloads exchanged over the message broker.
package queue

// DispatchQueueName is the durable queue carrying notification dispatch
// events from the API process to the consumer.
const DispatchQueueName = "notification.dispatch"

// NotificationEvent is published whenever the booking lifecycle produces
// a user-facing notification. EventID is a fresh UUID per publish; the
// consumer uses it as an idempotency key so broker redeliveries never
// create a second notification row.
type NotificationEvent struct {
	EventID   string `json:"event_id"`
	UserID    uint64 `json:"user_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url"`
	Metadata  string `json:"metadata"`
	EmittedAt string `json:"emitted_at"`
}
