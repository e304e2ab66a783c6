package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
)

func newTestEventPublisher(w *mockKafkaWriter) *EventPublisher {
	p := NewEventPublisher(newTestProducer(w), "compval-test")
	p.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	return p
}

func lastEnvelope(t *testing.T, w *mockKafkaWriter) (string, EventEnvelope) {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.writes)
	batch := w.writes[len(w.writes)-1]
	require.Len(t, batch, 1)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(batch[0].Value, &envelope))
	return batch[0].Topic, envelope
}

func TestEventPublisher_Enqueue(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestEventPublisher(w)

	subject := property.Subject{Address: "12 Birch Ln", Neighborhood: "Downtown", LivingArea: 1850}
	requestID, err := p.Enqueue(context.Background(), subject, appvaluation.Options{
		ApplyMarketAdjustments: true,
		ComparableLimit:        10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)

	topic, envelope := lastEnvelope(t, w)
	assert.Equal(t, TopicValuationRequested, topic)
	assert.Equal(t, "valuation.requested", envelope.EventType)
	assert.Equal(t, "compval-test", envelope.Source)

	var payload ValuationRequestedPayload
	require.NoError(t, envelope.DecodePayload(&payload))
	assert.Equal(t, requestID, payload.RequestID)
	assert.Equal(t, "12 Birch Ln", payload.Subject.Address)
	assert.True(t, payload.ApplyMarketAdjustments)
	assert.Equal(t, 10, payload.ComparableLimit)
	assert.Equal(t, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC), payload.RequestedAt)
}

func TestEventPublisher_PublishSaleRecorded(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestEventPublisher(w)

	sale := property.Comparable{ID: "sale-1", Address: "9 Oak St", SalePrice: 420000}
	require.NoError(t, p.PublishSaleRecorded(context.Background(), sale))

	topic, envelope := lastEnvelope(t, w)
	assert.Equal(t, TopicSaleRecorded, topic)
	assert.Equal(t, "sale.recorded", envelope.EventType)

	var payload SaleRecordedPayload
	require.NoError(t, envelope.DecodePayload(&payload))
	assert.Equal(t, "sale-1", payload.Sale.ID)
	assert.InDelta(t, 420000, payload.Sale.SalePrice, 0.01)
}

func TestEventPublisher_PublishValuationCompleted(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestEventPublisher(w)

	result := &domainvaluation.Result{
		SubjectAddress:  "12 Birch Ln",
		EstimatedValue:  512000,
		ValueRangeLow:   486400,
		ValueRangeHigh:  537600,
		ConfidenceScore: 85,
		ConfidenceLevel: domainvaluation.ConfidenceHigh,
		ComparableCount: 7,
		GeneratedAt:     time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishValuationCompleted(context.Background(), "req-42", result))

	topic, envelope := lastEnvelope(t, w)
	assert.Equal(t, TopicValuationCompleted, topic)

	var payload ValuationCompletedPayload
	require.NoError(t, envelope.DecodePayload(&payload))
	assert.Equal(t, "req-42", payload.RequestID)
	assert.InDelta(t, 512000, payload.EstimatedValue, 0.01)
	assert.Equal(t, "HIGH", payload.ConfidenceLevel)
	assert.Equal(t, 7, payload.ComparableCount)
	assert.Empty(t, payload.FallbackSource)
}

func TestEventPublisher_PublishError(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return assert.AnError
	}}
	p := newTestEventPublisher(w)

	_, err := p.Enqueue(context.Background(), property.Subject{Address: "x"}, appvaluation.DefaultOptions())
	require.Error(t, err)
}
