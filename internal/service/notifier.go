// Package service holds the outbound adapters sitting between the
// lifecycle manager and external systems. Errors here are logged and
// returned so callers can ignore failures without interrupting the main
// request flow.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/queue"
)

// AMQPNotifier publishes notification dispatch events to the
// notification.dispatch queue. It dials per publish, which keeps it free
// of channel state to guard; notification volume is far below the point
// where that matters.
type AMQPNotifier struct {
	URL string
}

// NewAMQPNotifier returns a notifier targeting the given broker URL.
func NewAMQPNotifier(url string) *AMQPNotifier {
	if url == "" {
		url = queue.BrokerURL()
	}
	return &AMQPNotifier{URL: url}
}

// Notify assigns the event its idempotency key and publishes it as a
// persistent message. The transition that produced the notification has
// already committed, so any error is reported but must not propagate
// into the request path.
func (p *AMQPNotifier) Notify(ctx context.Context, n model.Notification) error {
	ev := queue.NotificationEvent{
		EventID:   uuid.NewString(),
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: n.ActionURL,
		Metadata:  n.Metadata,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("notifier: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notifier: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(queue.DispatchQueueName, true, false, false, false, nil); err != nil {
		log.Printf("notifier: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notifier: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.DispatchQueueName, false, false, pub); err != nil {
		log.Printf("notifier: publish failed: %v", err)
		return err
	}
	return nil
}
