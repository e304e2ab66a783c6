// Package worker hosts the message handlers the background worker
// dispatches consumed events to.
package worker

import (
	"context"
	"time"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/internal/infrastructure/messaging/kafka"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/errors"
	"github.com/propsage/compval/pkg/types/common"
)

// CompletedPublisher reports finished valuations downstream. Optional:
// a nil publisher processes requests without announcing results.
type CompletedPublisher interface {
	PublishValuationCompleted(ctx context.Context, requestID string, result *domainvaluation.Result) error
}

// SaleWriter records one closed sale into the corpus.
type SaleWriter interface {
	Insert(ctx context.Context, sale property.Comparable) error
}

// IngestObserver is notified after each sale ingestion attempt, for
// metrics. Optional.
type IngestObserver func(err error)

// ─────────────────────────────────────────────────────────────────────────────
// Valuation requests
// ─────────────────────────────────────────────────────────────────────────────

// ValuationRequestHandler values subjects from the requested-valuations
// topic and publishes each outcome.
type ValuationRequestHandler struct {
	service   appvaluation.Service
	publisher CompletedPublisher
	logger    logging.Logger
}

func NewValuationRequestHandler(service appvaluation.Service, publisher CompletedPublisher, logger logging.Logger) *ValuationRequestHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ValuationRequestHandler{service: service, publisher: publisher, logger: logger}
}

// Handle decodes one valuation request and runs it.
//
// Malformed envelopes and unusable subjects return nil: redelivery
// cannot fix them, and the consumer's retry budget is reserved for
// transient faults like a publish failure.
func (h *ValuationRequestHandler) Handle(ctx context.Context, msg *common.Message) error {
	envelope, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		h.logger.Warn("dropping undecodable valuation request", logging.Err(err))
		return nil
	}

	var payload kafka.ValuationRequestedPayload
	if err := envelope.DecodePayload(&payload); err != nil {
		h.logger.Warn("dropping valuation request with bad payload",
			logging.String("event_id", envelope.EventID), logging.Err(err))
		return nil
	}

	opts := appvaluation.Options{
		IncludeComparables:     payload.IncludeComparables,
		ApplyMarketAdjustments: payload.ApplyMarketAdjustments,
		ComparableLimit:        payload.ComparableLimit,
	}

	started := time.Now()
	result, err := h.service.Value(ctx, payload.Subject, opts)
	if err != nil {
		if errors.IsIncompleteRecord(err) {
			h.logger.Warn("dropping unusable valuation request",
				logging.String("request_id", payload.RequestID), logging.Err(err))
			return nil
		}
		return err
	}

	h.logger.Info("valuation completed",
		logging.String("request_id", payload.RequestID),
		logging.String("address", result.SubjectAddress),
		logging.Float64("estimated_value", result.EstimatedValue),
		logging.Int("confidence_score", result.ConfidenceScore),
		logging.Duration("elapsed", time.Since(started)))

	if h.publisher == nil {
		return nil
	}
	return h.publisher.PublishValuationCompleted(ctx, payload.RequestID, result)
}

// ─────────────────────────────────────────────────────────────────────────────
// Sale ingestion
// ─────────────────────────────────────────────────────────────────────────────

// SaleRecordedHandler ingests closed sales from the sale-recorded topic
// into the corpus.
type SaleRecordedHandler struct {
	writer   SaleWriter
	observer IngestObserver
	logger   logging.Logger
}

func NewSaleRecordedHandler(writer SaleWriter, observer IngestObserver, logger logging.Logger) *SaleRecordedHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SaleRecordedHandler{writer: writer, observer: observer, logger: logger}
}

// Handle decodes and stores one closed sale. Duplicate sales are
// treated as already ingested, keeping the handler idempotent under
// at-least-once delivery.
func (h *SaleRecordedHandler) Handle(ctx context.Context, msg *common.Message) error {
	envelope, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		h.logger.Warn("dropping undecodable sale event", logging.Err(err))
		return nil
	}

	var payload kafka.SaleRecordedPayload
	if err := envelope.DecodePayload(&payload); err != nil {
		h.logger.Warn("dropping sale event with bad payload",
			logging.String("event_id", envelope.EventID), logging.Err(err))
		return nil
	}

	if err := payload.Sale.Validate(); err != nil {
		h.logger.Warn("dropping invalid sale",
			logging.String("sale_id", payload.Sale.ID), logging.Err(err))
		h.observe(err)
		return nil
	}

	err = h.writer.Insert(ctx, payload.Sale)
	if errors.IsConflict(err) {
		h.logger.Debug("sale already ingested", logging.String("sale_id", payload.Sale.ID))
		err = nil
	}
	h.observe(err)
	if err != nil {
		return err
	}

	h.logger.Info("sale ingested",
		logging.String("sale_id", payload.Sale.ID),
		logging.String("neighborhood", payload.Sale.Neighborhood))
	return nil
}

func (h *SaleRecordedHandler) observe(err error) {
	if h.observer != nil {
		h.observer(err)
	}
}
