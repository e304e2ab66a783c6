package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/errors"
	"github.com/propsage/compval/pkg/types/common"
)

// SaleWriter records a closed sale into the corpus.
type SaleWriter interface {
	Insert(ctx context.Context, sale property.Comparable) error
}

// SaleEventPublisher announces a newly recorded sale. Optional; a nil
// publisher skips the announcement.
type SaleEventPublisher interface {
	PublishSaleRecorded(ctx context.Context, sale property.Comparable) error
}

// ComparableHandler serves the closed-sale corpus endpoints.
type ComparableHandler struct {
	corpus    market.CorpusProvider
	stats     market.NeighborhoodStatsProvider
	writer    SaleWriter
	publisher SaleEventPublisher
	logger    logging.Logger
}

func NewComparableHandler(
	corpus market.CorpusProvider,
	stats market.NeighborhoodStatsProvider,
	writer SaleWriter,
	publisher SaleEventPublisher,
	logger logging.Logger,
) *ComparableHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ComparableHandler{
		corpus:    corpus,
		stats:     stats,
		writer:    writer,
		publisher: publisher,
		logger:    logger,
	}
}

// Search lists closed sales matching the query parameters. Supported
// filters: neighborhood, property_type, min_bedrooms, max_bedrooms,
// min_price, max_price, sold_after (RFC 3339 date).
func (h *ComparableHandler) Search(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseSearchCriteria(r)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	page, err := parsePagination(r)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	// The corpus port has no offset, so fetch through the requested page
	// and slice locally. Page sizes are capped, so the overfetch is
	// bounded.
	limit := page.Offset() + page.PageSize
	sales, err := h.corpus.Search(r.Context(), criteria, limit)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	start := page.Offset()
	if start > len(sales) {
		start = len(sales)
	}
	pageItems := sales[start:]

	resp := common.NewSuccessResponse(pageItems)
	resp.Pagination = &page
	writeJSON(w, http.StatusOK, resp)
}

// Create ingests one closed sale into the corpus and, when a publisher
// is wired, announces it on the sale-recorded topic.
func (h *ComparableHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.writer == nil {
		writeError(w, http.StatusServiceUnavailable, errors.ErrCodeServiceUnavailable, "sale ingestion is not enabled")
		return
	}

	var sale property.Comparable
	if err := decodeJSON(r, &sale); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if err := sale.Validate(); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}

	if err := h.writer.Insert(r.Context(), sale); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishSaleRecorded(r.Context(), sale); err != nil {
			// The sale is durable; a lost announcement only delays
			// downstream consumers until the next corpus refresh.
			h.logger.Warn("sale recorded but event publish failed",
				logging.String("sale_id", sale.ID), logging.Err(err))
		}
	}

	writeJSON(w, http.StatusCreated, common.NewSuccessResponse(sale))
}

// NeighborhoodStats returns aggregate pricing for one neighborhood.
func (h *ComparableHandler) NeighborhoodStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.ErrCodeBadRequest, "neighborhood name is required")
		return
	}

	stats, err := h.stats.GetStats(r.Context(), name)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewSuccessResponse(stats))
}

func parseSearchCriteria(r *http.Request) (market.SearchCriteria, error) {
	q := r.URL.Query()
	criteria := market.SearchCriteria{
		Neighborhood: q.Get("neighborhood"),
		PropertyType: property.Type(q.Get("property_type")),
	}

	intParams := []struct {
		name string
		dest *int
	}{
		{"min_bedrooms", &criteria.MinBedrooms},
		{"max_bedrooms", &criteria.MaxBedrooms},
	}
	for _, p := range intParams {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return criteria, errors.InvalidParam(p.name + " must be an integer")
			}
			*p.dest = v
		}
	}

	floatParams := []struct {
		name string
		dest *float64
	}{
		{"min_price", &criteria.MinPrice},
		{"max_price", &criteria.MaxPrice},
	}
	for _, p := range floatParams {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return criteria, errors.InvalidParam(p.name + " must be a number")
			}
			*p.dest = v
		}
	}

	if raw := q.Get("sold_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			if t, err = time.Parse("2006-01-02", raw); err != nil {
				return criteria, errors.InvalidParam("sold_after must be an RFC 3339 timestamp or date")
			}
		}
		criteria.SoldAfter = t
	}

	return criteria, nil
}
