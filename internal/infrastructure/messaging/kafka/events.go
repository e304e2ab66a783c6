package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
)

// EventPublisher emits the service's domain events. It satisfies the
// HTTP layer's ValuationQueue and SaleEventPublisher ports and the
// worker's completion sink.
type EventPublisher struct {
	producer *Producer
	source   string
	now      func() time.Time
}

// NewEventPublisher wraps a producer. Source names the emitting service
// in event envelopes, for consumer-side provenance.
func NewEventPublisher(producer *Producer, source string) *EventPublisher {
	return &EventPublisher{producer: producer, source: source, now: time.Now}
}

// Enqueue publishes a valuation request and returns its request ID.
func (p *EventPublisher) Enqueue(ctx context.Context, subject property.Subject, opts appvaluation.Options) (string, error) {
	payload := ValuationRequestedPayload{
		RequestID:              uuid.NewString(),
		Subject:                subject,
		IncludeComparables:     opts.IncludeComparables,
		ApplyMarketAdjustments: opts.ApplyMarketAdjustments,
		ComparableLimit:        opts.ComparableLimit,
		RequestedAt:            p.now().UTC(),
	}
	if err := p.publish(ctx, TopicValuationRequested, "valuation.requested", payload); err != nil {
		return "", err
	}
	return payload.RequestID, nil
}

// PublishSaleRecorded announces a newly ingested closed sale.
func (p *EventPublisher) PublishSaleRecorded(ctx context.Context, sale property.Comparable) error {
	return p.publish(ctx, TopicSaleRecorded, "sale.recorded", SaleRecordedPayload{
		Sale:       sale,
		RecordedAt: p.now().UTC(),
	})
}

// PublishValuationCompleted reports an asynchronous valuation's outcome.
func (p *EventPublisher) PublishValuationCompleted(ctx context.Context, requestID string, result *domainvaluation.Result) error {
	return p.publish(ctx, TopicValuationCompleted, "valuation.completed", ValuationCompletedPayload{
		RequestID:       requestID,
		SubjectAddress:  result.SubjectAddress,
		EstimatedValue:  result.EstimatedValue,
		ValueRangeLow:   result.ValueRangeLow,
		ValueRangeHigh:  result.ValueRangeHigh,
		ConfidenceScore: result.ConfidenceScore,
		ConfidenceLevel: string(result.ConfidenceLevel),
		ComparableCount: result.ComparableCount,
		FallbackSource:  string(result.FallbackSource),
		Fingerprint:     result.Fingerprint,
		GeneratedAt:     result.GeneratedAt,
	})
}

func (p *EventPublisher) publish(ctx context.Context, topic, eventType string, payload interface{}) error {
	envelope, err := NewEventEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := envelope.ToMessage(topic)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}
