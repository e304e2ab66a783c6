package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/types/common"
)

// mockKafkaReader
type mockKafkaReader struct {
	fetchFunc  func(ctx context.Context) (kafka.Message, error)
	commitFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc  func() error
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.commitFunc != nil {
		return m.commitFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockKafkaReader) Stats() kafka.ReaderStats {
	return kafka.ReaderStats{}
}

func newTestConsumer(reader ReaderInterface) *Consumer {
	return &Consumer{
		reader:   reader,
		config:   ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "test-group"},
		logger:   logging.NewNopLogger(),
		handlers: make(map[string]common.MessageHandler),
		metrics:  &ConsumerMetrics{},
	}
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
		MaxRetryBackoff: 2 * time.Millisecond,
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	valid := ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}
	assert.NoError(t, ValidateConsumerConfig(valid))

	noBrokers := valid
	noBrokers.Brokers = nil
	assert.Error(t, ValidateConsumerConfig(noBrokers))

	noGroup := valid
	noGroup.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(noGroup))

	badOffset := valid
	badOffset.AutoOffsetReset = "sideways"
	assert.Error(t, ValidateConsumerConfig(badOffset))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	c := newTestConsumer(&mockKafkaReader{})

	require.NoError(t, c.Subscribe("valuation.requested", func(ctx context.Context, msg *common.Message) error { return nil }))
	assert.Len(t, c.handlers, 1)

	require.NoError(t, c.Unsubscribe("valuation.requested"))
	assert.Empty(t, c.handlers)
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newTestConsumer(&mockKafkaReader{})
	c.running.Store(true)

	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	fetched := false
	committed := make(chan kafka.Message, 1)
	reader := &mockKafkaReader{
		fetchFunc: func(ctx context.Context) (kafka.Message, error) {
			if fetched {
				<-ctx.Done()
				return kafka.Message{}, ctx.Err()
			}
			fetched = true
			return kafka.Message{
				Topic:   "valuation.requested",
				Offset:  7,
				Value:   []byte(`{"event_id":"e1"}`),
				Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t1")}},
			}, nil
		},
		commitFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			committed <- msgs[0]
			return nil
		},
	}

	var got *common.Message
	c := newTestConsumer(reader)
	c.Subscribe("valuation.requested", func(ctx context.Context, msg *common.Message) error {
		got = msg
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	select {
	case m := <-committed:
		assert.Equal(t, int64(7), m.Offset)
	case <-time.After(2 * time.Second):
		t.Fatal("message never committed")
	}

	require.NotNil(t, got)
	assert.Equal(t, "t1", got.Headers["trace_id"])
	assert.Equal(t, int64(1), c.metrics.MessagesProcessed.Load())
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newTestConsumer(&mockKafkaReader{})
	c.config.RetryConfig = fastRetryConfig()

	attempts := 0
	handler := func(ctx context.Context, msg *common.Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}

	err := c.processMessage(context.Background(), &common.Message{Topic: "t"}, handler)
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestProcessMessage_ExhaustedGoesToDeadLetter(t *testing.T) {
	c := newTestConsumer(&mockKafkaReader{})
	c.config.RetryConfig = fastRetryConfig()
	c.config.RetryConfig.DeadLetterTopic = "dead_letter.valuation"

	w := &mockKafkaWriter{}
	c.deadLetterProducer = newTestProducer(w)

	msg := &common.Message{
		Topic:   "valuation.requested",
		Value:   []byte("poison"),
		Headers: map[string]string{"trace_id": "t1"},
	}
	handler := func(ctx context.Context, m *common.Message) error {
		return errors.New("permanent")
	}

	err := c.processMessage(context.Background(), msg, handler)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), c.metrics.MessagesDeadLettered.Load())

	require.Len(t, w.writes, 1)
	dl := w.writes[0][0]
	assert.Equal(t, "dead_letter.valuation", dl.Topic)
	assert.Equal(t, []byte("poison"), dl.Value)

	headers := make(map[string]string)
	for _, h := range dl.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "valuation.requested", headers["original_topic"])
	assert.Equal(t, "permanent", headers["error_message"])
	// original headers survive the trip
	assert.Equal(t, "t1", headers["trace_id"])
}

func TestProcessMessage_ContextCancelledDuringBackoff(t *testing.T) {
	c := newTestConsumer(&mockKafkaReader{})
	c.config.RetryConfig = RetryConfig{MaxRetries: 3, RetryBackoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.processMessage(ctx, &common.Message{Topic: "t"}, func(ctx context.Context, m *common.Message) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_NotRunning(t *testing.T) {
	c := newTestConsumer(&mockKafkaReader{})
	assert.NoError(t, c.Close())
}
