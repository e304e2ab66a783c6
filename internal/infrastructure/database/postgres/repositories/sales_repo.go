// Package repositories provides PostgreSQL-backed implementations of the
// market provider ports over the closed_sales corpus.
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	appErrors "github.com/propsage/compval/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// ClosedSaleRepository
// ─────────────────────────────────────────────────────────────────────────────

// ClosedSaleRepository is the PostgreSQL implementation of
// market.CorpusProvider and market.NeighborhoodStatsProvider.  Every public
// method accepts a context.Context and uses parameterised queries
// exclusively.
type ClosedSaleRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewClosedSaleRepository constructs a ready-to-use repository.
func NewClosedSaleRepository(pool *pgxpool.Pool, logger Logger) *ClosedSaleRepository {
	return &ClosedSaleRepository{pool: pool, logger: logger}
}

var _ market.CorpusProvider = (*ClosedSaleRepository)(nil)
var _ market.NeighborhoodStatsProvider = (*ClosedSaleRepository)(nil)

const saleColumns = `
	id, address, neighborhood, living_area, bedrooms, bathrooms,
	year_built, property_type, sale_price, sale_date, days_on_market,
	price_per_sqft, distance_miles`

// Search returns closed sales matching the criteria, newest first so the
// order is stable for identical corpus states.  Zero-valued criteria
// fields are not filtered on.
func (r *ClosedSaleRepository) Search(ctx context.Context, criteria market.SearchCriteria, limit int) ([]property.Comparable, error) {
	where, args := buildSaleFilter(criteria)
	if limit <= 0 {
		limit = 25
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM closed_sales %s ORDER BY sale_date DESC, id LIMIT $%d`,
		saleColumns, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("ClosedSaleRepository.Search", "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrCodeComparableSearchFailed, "failed to query closed sales")
	}
	defer rows.Close()

	return scanSales(rows)
}

// buildSaleFilter assembles the WHERE clause.  The neighborhood-or-type
// disjunction mirrors the in-memory selector: either locale signal admits
// a candidate.
func buildSaleFilter(criteria market.SearchCriteria) (string, []interface{}) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var locale []string
	if criteria.Neighborhood != "" {
		locale = append(locale, fmt.Sprintf("LOWER(TRIM(neighborhood)) = LOWER(TRIM(%s))", arg(criteria.Neighborhood)))
	}
	if criteria.PropertyType != "" {
		locale = append(locale, fmt.Sprintf("property_type = %s", arg(string(criteria.PropertyType))))
	}
	if len(locale) > 0 {
		conds = append(conds, "("+strings.Join(locale, " OR ")+")")
	}

	if criteria.MinBedrooms > 0 {
		conds = append(conds, fmt.Sprintf("(bedrooms = 0 OR bedrooms BETWEEN %s AND %s)",
			arg(criteria.MinBedrooms), arg(criteria.MaxBedrooms)))
	}
	if criteria.MinPrice > 0 {
		conds = append(conds, fmt.Sprintf("sale_price BETWEEN %s AND %s",
			arg(criteria.MinPrice), arg(criteria.MaxPrice)))
	}
	if !criteria.SoldAfter.IsZero() {
		conds = append(conds, fmt.Sprintf("sale_date >= %s", arg(criteria.SoldAfter)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanSales(rows pgx.Rows) ([]property.Comparable, error) {
	var sales []property.Comparable
	for rows.Next() {
		var c property.Comparable
		err := rows.Scan(
			&c.ID, &c.Address, &c.Neighborhood, &c.LivingArea, &c.Bedrooms,
			&c.Bathrooms, &c.YearBuilt, &c.PropertyType, &c.SalePrice,
			&c.SaleDate, &c.DaysOnMarket, &c.PricePerSqFt, &c.DistanceMiles,
		)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to scan closed sale")
		}
		sales = append(sales, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "closed sale row iteration failed")
	}
	return sales, nil
}

// Version identifies the corpus snapshot as row count plus latest
// ingestion time.  Any insert changes the version, which invalidates
// cached valuation fingerprints without explicit purging.
func (r *ClosedSaleRepository) Version(ctx context.Context) (string, error) {
	var count int64
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(created_at) FROM closed_sales`).Scan(&count, &latest)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to read corpus version")
	}
	if latest == nil {
		return fmt.Sprintf("%d:empty", count), nil
	}
	return fmt.Sprintf("%d:%d", count, latest.Unix()), nil
}

// GetStats aggregates neighborhood pricing on demand.  A neighborhood with
// no sales yields a not-found error, never a zero-valued struct.
func (r *ClosedSaleRepository) GetStats(ctx context.Context, neighborhood string) (*market.NeighborhoodStats, error) {
	stats := market.NeighborhoodStats{
		Neighborhood: neighborhood,
		ComputedAt:   time.Now().UTC(),
	}
	err := r.pool.QueryRow(ctx, `
		SELECT
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY sale_price),
			COALESCE(AVG(sale_price / NULLIF(living_area, 0)), 0),
			COUNT(*),
			COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY days_on_market), 0)::int
		FROM closed_sales
		WHERE LOWER(TRIM(neighborhood)) = LOWER(TRIM($1))
		HAVING COUNT(*) > 0`,
		neighborhood,
	).Scan(&stats.MedianSalePrice, &stats.AveragePerSqFt, &stats.SampleSize, &stats.MedianDaysOnMkt)
	if err == pgx.ErrNoRows {
		return nil, appErrors.NotFound("no statistics for neighborhood " + neighborhood)
	}
	if err != nil {
		r.logger.Error("ClosedSaleRepository.GetStats", "error", err, "neighborhood", neighborhood)
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to aggregate neighborhood stats")
	}
	return &stats, nil
}

// Insert records one closed sale into the corpus.  A missing ID is
// assigned; a non-positive price is rejected before touching the database.
func (r *ClosedSaleRepository) Insert(ctx context.Context, sale property.Comparable) error {
	if err := sale.Validate(); err != nil {
		return err
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO closed_sales (
			id, address, neighborhood, living_area, bedrooms, bathrooms,
			year_built, property_type, sale_price, sale_date, days_on_market,
			price_per_sqft, distance_miles, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
		ON CONFLICT (id) DO UPDATE SET
			sale_price = EXCLUDED.sale_price,
			sale_date = EXCLUDED.sale_date,
			days_on_market = EXCLUDED.days_on_market,
			price_per_sqft = EXCLUDED.price_per_sqft`,
		sale.ID, sale.Address, sale.Neighborhood, sale.LivingArea, sale.Bedrooms,
		sale.Bathrooms, sale.YearBuilt, string(sale.PropertyType), sale.SalePrice,
		sale.SaleDate, sale.DaysOnMarket, sale.PricePerSqFt, sale.DistanceMiles,
	)
	if err != nil {
		r.logger.Error("ClosedSaleRepository.Insert", "error", err, "sale_id", sale.ID)
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to insert closed sale")
	}
	return nil
}
