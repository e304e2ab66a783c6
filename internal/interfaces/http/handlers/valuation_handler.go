package handlers

import (
	"context"
	"net/http"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/errors"
	"github.com/propsage/compval/pkg/types/common"
)

// ValuationQueue publishes a valuation request for asynchronous
// processing and returns the request identifier a client can correlate
// the completed event with.
type ValuationQueue interface {
	Enqueue(ctx context.Context, subject property.Subject, opts appvaluation.Options) (string, error)
}

// ValuationHandler serves the valuation endpoints. The queue is
// optional; without it the async endpoint answers 503.
type ValuationHandler struct {
	service appvaluation.Service
	queue   ValuationQueue
	logger  logging.Logger
}

func NewValuationHandler(service appvaluation.Service, queue ValuationQueue, logger logging.Logger) *ValuationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ValuationHandler{service: service, queue: queue, logger: logger}
}

// ValuationRequest is the POST /valuations payload.
type ValuationRequest struct {
	Subject property.Subject      `json:"subject"`
	Options *appvaluation.Options `json:"options,omitempty"`
}

func (req *ValuationRequest) options() appvaluation.Options {
	if req.Options == nil {
		return appvaluation.DefaultOptions()
	}
	return *req.Options
}

// Create runs a synchronous valuation and returns the full result.
func (h *ValuationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ValuationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	result, err := h.service.Value(r.Context(), req.Subject, req.options())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, common.NewSuccessResponse(result))
}

// AsyncAccepted is the payload returned by the async endpoint.
type AsyncAccepted struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// CreateAsync enqueues a valuation request and answers 202. Results
// arrive on the completed-valuations topic keyed by the returned
// request ID.
func (h *ValuationHandler) CreateAsync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, errors.ErrCodeServiceUnavailable, "async valuations are not enabled")
		return
	}

	var req ValuationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	// Reject unusable subjects before queueing so the caller learns
	// synchronously instead of from a dead-lettered event.
	if _, err := property.ExtractFeatures(req.Subject); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	requestID, err := h.queue.Enqueue(r.Context(), req.Subject, req.options())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	h.logger.Info("valuation enqueued",
		logging.String("request_id", requestID),
		logging.String("address", req.Subject.Address))
	writeJSON(w, http.StatusAccepted, common.NewSuccessResponse(AsyncAccepted{
		RequestID: requestID,
		Status:    "queued",
	}))
}

// ConfidenceLevels returns the score bands and their pricing margins so
// clients can render ranges without hardcoding the thresholds.
func (h *ValuationHandler) ConfidenceLevels(w http.ResponseWriter, r *http.Request) {
	type band struct {
		Level    domainvaluation.ConfidenceLevel `json:"level"`
		MinScore int                             `json:"min_score"`
		Margin   float64                         `json:"margin"`
	}
	levels := make([]band, 0, len(domainvaluation.ConfidenceLevels()))
	for _, lvl := range domainvaluation.ConfidenceLevels() {
		levels = append(levels, band{
			Level:    lvl,
			MinScore: lvl.MinScore(),
			Margin:   lvl.Margin(),
		})
	}
	writeJSON(w, http.StatusOK, common.NewSuccessResponse(levels))
}
