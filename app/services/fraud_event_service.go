package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clickforge/affiliate-tracker/models"
)

// FraudEvent is the audit-stream projection of a FraudLog row
type FraudEvent struct {
	ClickID     string `json:"click_id"`
	OfferID     uint   `json:"offer_id"`
	AffiliateID uint   `json:"affiliate_id"`
	FraudType   string `json:"fraud_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	IP          string `json:"ip"`
	UAHash      string `json:"ua_hash"`
	FlaggedAt   int64  `json:"flagged_at"`
}

// FraudEventPublisher streams fraud flags to the audit channel. Publishing
// is best-effort: the persisted FraudLog row stays authoritative and a
// publish failure never blocks a request.
type FraudEventPublisher interface {
	Publish(ctx context.Context, log *models.FraudLog) error
	Close() error
}

// KafkaFraudEventPublisher implements FraudEventPublisher on a kafka topic,
// keyed by click id so all flags for one click land on one partition
type KafkaFraudEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaFraudEventPublisher(brokers []string, topic string) *KafkaFraudEventPublisher {
	return &KafkaFraudEventPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaFraudEventPublisher) Publish(ctx context.Context, log *models.FraudLog) error {
	event := FraudEvent{
		ClickID:     log.ClickID,
		OfferID:     log.OfferID,
		AffiliateID: log.AffiliateID,
		FraudType:   log.FraudType,
		Severity:    log.Severity,
		Description: log.Description,
		IP:          log.IP,
		UAHash:      log.UAHash,
		FlaggedAt:   log.CreatedAt.Unix(),
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal fraud event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(log.ClickID),
		Value: msg,
		Time:  time.Now(),
	})
}

func (p *KafkaFraudEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopFraudEventPublisher is used when the audit stream is disabled
type NoopFraudEventPublisher struct{}

func NewNoopFraudEventPublisher() *NoopFraudEventPublisher { return &NoopFraudEventPublisher{} }

func (*NoopFraudEventPublisher) Publish(context.Context, *models.FraudLog) error { return nil }
func (*NoopFraudEventPublisher) Close() error                                    { return nil }
