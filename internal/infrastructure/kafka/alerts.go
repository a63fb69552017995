// Package kafka publishes operator alerts — compensation and capture
// failures, order-submission failures (including those still failing
// after the startup reconciler's retry), disputes, and store
// deactivation/redaction failures — onto the operator-alerts topic,
// grounded on the teacher's KafkaPublisher/DefaultKafkaPublisher
// pair (kafka.Writer + WriteMessages, batched with retry).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// AlertSeverity classifies how urgently an operator alert needs human
// attention.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// OperatorAlert is the event shape published to operator-alerts.
type OperatorAlert struct {
	Severity       AlertSeverity `json:"severity"`
	Kind           string        `json:"kind"`
	ShopDomain     string        `json:"shop_domain,omitempty"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	Message        string        `json:"message"`
	OccurredAtUnix int64         `json:"occurred_at_unix"`
}

type AlertPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewAlertPublisher(brokers []string, topic string) *AlertPublisher {
	return &AlertPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

func (p *AlertPublisher) Publish(ctx context.Context, alert OperatorAlert) error {
	v, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal operator alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.Kind),
		Value: v,
		Time:  time.Now(),
	})
}

// PublishBatchWithRetry publishes a batch of alerts, attempting the whole
// batch up to maxRetries times in total with linear backoff before giving up —
// the same retry shape as the teacher's BatchPublishOrdersWithRetry,
// without the batch-splitting since operator alerts are low-volume.
func (p *AlertPublisher) PublishBatchWithRetry(ctx context.Context, alerts []OperatorAlert, maxRetries int) error {
	if len(alerts) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(alerts))
	now := time.Now()
	for _, a := range alerts {
		v, err := json.Marshal(a)
		if err != nil {
			slog.Error("failed to marshal operator alert", "kind", a.Kind, "error", err)
			continue
		}
		messages = append(messages, kafka.Message{Key: []byte(a.Kind), Value: v, Time: now})
	}
	if len(messages) == 0 {
		return fmt.Errorf("no valid operator alerts to publish")
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		lastErr = p.writer.WriteMessages(writeCtx, messages...)
		cancel()
		if lastErr == nil {
			return nil
		}
		slog.Warn("operator alert batch publish attempt failed", "attempt", attempt, "error", lastErr)
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("operator alert batch failed after %d attempts: %w", maxRetries, lastErr)
}

func (p *AlertPublisher) Close() error {
	return p.writer.Close()
}
