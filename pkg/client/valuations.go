package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Subject describes the property to value. Fields mirror the server's
// wire format; zero values are omitted where the server treats them as
// unknown.
type Subject struct {
	Address       string   `json:"address"`
	Neighborhood  string   `json:"neighborhood"`
	LivingArea    float64  `json:"living_area"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     float64  `json:"bathrooms"`
	YearBuilt     int      `json:"year_built"`
	Condition     string   `json:"condition"`
	Amenities     []string `json:"amenities,omitempty"`
	PropertyType  string   `json:"property_type"`
	DeclaredPrice float64  `json:"declared_price,omitempty"`
}

// ValuationOptions tunes a valuation request.
type ValuationOptions struct {
	IncludeComparables     bool `json:"include_comparables"`
	ApplyMarketAdjustments bool `json:"apply_market_adjustments"`
	ComparableLimit        int  `json:"comparable_limit,omitempty"`
}

// ValuationRequest is the body of POST /api/v1/valuations.
type ValuationRequest struct {
	Subject Subject           `json:"subject"`
	Options *ValuationOptions `json:"options,omitempty"`
}

// ScoredComparable is a comparable sale with its contribution to the
// estimate.
type ScoredComparable struct {
	Comparable    Comparable `json:"comparable"`
	Similarity    float64    `json:"similarity"`
	Weight        float64    `json:"weight"`
	AdjustedPrice float64    `json:"adjusted_price"`
}

// ValuationResult is the server's valuation report.
type ValuationResult struct {
	SubjectAddress  string             `json:"subject_address"`
	EstimatedValue  float64            `json:"estimated_value"`
	ValueRangeLow   float64            `json:"value_range_low"`
	ValueRangeHigh  float64            `json:"value_range_high"`
	PricePerSqFt    float64            `json:"price_per_sqft,omitempty"`
	ConfidenceScore int                `json:"confidence_score"`
	ConfidenceLevel string             `json:"confidence_level"`
	Margin          float64            `json:"margin"`
	ComparableCount int                `json:"comparable_count"`
	Comparables     []ScoredComparable `json:"comparables,omitempty"`
	FallbackSource  string             `json:"fallback_source,omitempty"`
	RiskFactors     []string           `json:"risk_factors,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	MarketCondition string             `json:"market_condition"`
	CorpusVersion   string             `json:"corpus_version,omitempty"`
	Fingerprint     string             `json:"fingerprint,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
	ElapsedMS       int64              `json:"elapsed_ms"`
}

// Value requests a synchronous valuation.
func (c *Client) Value(ctx context.Context, req ValuationRequest) (*ValuationResult, error) {
	var result ValuationResult
	if err := c.do(ctx, "POST", "/api/v1/valuations", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AsyncAccepted acknowledges a queued valuation request.
type AsyncAccepted struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// ValueAsync enqueues a valuation for background processing and returns
// the request ID to correlate the completion event with.
func (c *Client) ValueAsync(ctx context.Context, req ValuationRequest) (*AsyncAccepted, error) {
	var accepted AsyncAccepted
	if err := c.do(ctx, "POST", "/api/v1/valuations/async", req, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

// ConfidenceBand describes one confidence level and its score floor.
type ConfidenceBand struct {
	Level    string  `json:"level"`
	MinScore int     `json:"min_score"`
	Margin   float64 `json:"margin"`
}

// ConfidenceLevels lists the confidence bands, strongest first.
func (c *Client) ConfidenceLevels(ctx context.Context) ([]ConfidenceBand, error) {
	var bands []ConfidenceBand
	if err := c.do(ctx, "GET", "/api/v1/valuations/confidence-levels", nil, &bands); err != nil {
		return nil, err
	}
	return bands, nil
}

// Comparable is a closed sale record.
type Comparable struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Neighborhood string    `json:"neighborhood"`
	LivingArea   float64   `json:"living_area"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms"`
	YearBuilt    int       `json:"year_built"`
	PropertyType string    `json:"property_type"`
	SalePrice    float64   `json:"sale_price"`
	SaleDate     time.Time `json:"sale_date"`
	DaysOnMarket int       `json:"days_on_market"`
}

// ComparableFilter narrows a comparable search. Zero values are not
// sent.
type ComparableFilter struct {
	Neighborhood string
	PropertyType string
	MinBedrooms  int
	MaxBedrooms  int
	MinPrice     float64
	MaxPrice     float64
	SoldAfter    time.Time
	Page         int
	PageSize     int
}

func (f ComparableFilter) query() url.Values {
	q := url.Values{}
	if f.Neighborhood != "" {
		q.Set("neighborhood", f.Neighborhood)
	}
	if f.PropertyType != "" {
		q.Set("property_type", f.PropertyType)
	}
	if f.MinBedrooms > 0 {
		q.Set("min_bedrooms", strconv.Itoa(f.MinBedrooms))
	}
	if f.MaxBedrooms > 0 {
		q.Set("max_bedrooms", strconv.Itoa(f.MaxBedrooms))
	}
	if f.MinPrice > 0 {
		q.Set("min_price", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if !f.SoldAfter.IsZero() {
		q.Set("sold_after", f.SoldAfter.Format(time.RFC3339))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

// SearchComparables returns closed sales matching the filter.
func (c *Client) SearchComparables(ctx context.Context, filter ComparableFilter) ([]Comparable, error) {
	path := "/api/v1/comparables"
	if q := filter.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var sales []Comparable
	if err := c.do(ctx, "GET", path, nil, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// RecordSale submits a closed sale to the corpus. The server assigns an
// ID when the record carries none; the stored record is returned.
func (c *Client) RecordSale(ctx context.Context, sale Comparable) (*Comparable, error) {
	var stored Comparable
	if err := c.do(ctx, "POST", "/api/v1/comparables", sale, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// NeighborhoodStats is the aggregate market picture for one
// neighborhood.
type NeighborhoodStats struct {
	Neighborhood    string    `json:"neighborhood"`
	MedianSalePrice float64   `json:"median_sale_price"`
	AveragePerSqFt  float64   `json:"average_per_sqft"`
	SampleSize      int       `json:"sample_size"`
	MedianDaysOnMkt int       `json:"median_days_on_market"`
	ComputedAt      time.Time `json:"computed_at"`
	YoYAppreciation float64   `json:"yoy_appreciation"`
	InventoryMonths float64   `json:"inventory_months"`
}

// GetNeighborhoodStats fetches the aggregates for one neighborhood.
func (c *Client) GetNeighborhoodStats(ctx context.Context, name string) (*NeighborhoodStats, error) {
	if name == "" {
		return nil, fmt.Errorf("neighborhood name is required")
	}
	var stats NeighborhoodStats
	path := "/api/v1/neighborhoods/" + url.PathEscape(name) + "/stats"
	if err := c.do(ctx, "GET", path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
