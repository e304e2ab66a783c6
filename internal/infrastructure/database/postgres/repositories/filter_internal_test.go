package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
)

func TestBuildSaleFilter_Empty(t *testing.T) {
	where, args := buildSaleFilter(market.SearchCriteria{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildSaleFilter_LocaleDisjunction(t *testing.T) {
	where, args := buildSaleFilter(market.SearchCriteria{
		Neighborhood: "downtown",
		PropertyType: property.TypeCondo,
	})
	assert.Contains(t, where, "LOWER(TRIM(neighborhood)) = LOWER(TRIM($1)) OR property_type = $2")
	assert.Equal(t, []interface{}{"downtown", "condo"}, args)
}

func TestBuildSaleFilter_AllCriteria(t *testing.T) {
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := buildSaleFilter(market.SearchCriteria{
		Neighborhood: "downtown",
		MinBedrooms:  2,
		MaxBedrooms:  4,
		MinPrice:     320000,
		MaxPrice:     480000,
		SoldAfter:    cutoff,
	})

	assert.Contains(t, where, "WHERE")
	assert.Contains(t, where, "bedrooms = 0 OR bedrooms BETWEEN $2 AND $3")
	assert.Contains(t, where, "sale_price BETWEEN $4 AND $5")
	assert.Contains(t, where, "sale_date >= $6")
	assert.Len(t, args, 6)
}

func TestToFields_SkipsMalformedPairs(t *testing.T) {
	fields := toFields([]interface{}{"key", "value", 42, "orphan-value", "tail"})
	assert.Len(t, fields, 1)
	assert.Equal(t, "key", fields[0].Key)
}
