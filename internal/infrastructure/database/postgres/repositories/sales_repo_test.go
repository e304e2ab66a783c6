//go:build integration

// Integration tests for the closed-sale repository.  Tests require Docker
// and are gated behind the "integration" build tag.
package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	"github.com/propsage/compval/internal/infrastructure/database/postgres"
	"github.com/propsage/compval/internal/infrastructure/database/postgres/repositories"
	"github.com/propsage/compval/pkg/errors"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// startPostgres launches a PostgreSQL 16 container, runs migrations, and
// returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "compval_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/compval_test?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.RunMigrations(dbURL, "file://../../../../../migrations"))

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedSale(id, neighborhood string, price float64, daysAgo int) property.Comparable {
	return property.Comparable{
		ID:           id,
		Address:      id + " Test St",
		Neighborhood: neighborhood,
		LivingArea:   2000,
		Bedrooms:     3,
		Bathrooms:    2,
		YearBuilt:    2010,
		PropertyType: property.TypeSingleFamily,
		SalePrice:    price,
		SaleDate:     time.Now().UTC().AddDate(0, 0, -daysAgo),
		DaysOnMarket: 30,
	}
}

func TestClosedSaleRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewClosedSaleRepository(pool, noopLogger{})
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, seedSale("a", "downtown", 400000, 30)))
	require.NoError(t, repo.Insert(ctx, seedSale("b", "downtown", 420000, 60)))
	require.NoError(t, repo.Insert(ctx, seedSale("c", "Uptown", 300000, 90)))

	t.Run("search by neighborhood is case insensitive and newest first", func(t *testing.T) {
		sales, err := repo.Search(ctx, market.SearchCriteria{Neighborhood: "  DOWNTOWN "}, 10)
		require.NoError(t, err)
		require.Len(t, sales, 2)
		assert.Equal(t, "a", sales[0].ID)
		assert.Equal(t, "b", sales[1].ID)
	})

	t.Run("price band filters", func(t *testing.T) {
		sales, err := repo.Search(ctx, market.SearchCriteria{
			Neighborhood: "downtown",
			MinPrice:     410000,
			MaxPrice:     500000,
		}, 10)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, "b", sales[0].ID)
	})

	t.Run("limit applies", func(t *testing.T) {
		sales, err := repo.Search(ctx, market.SearchCriteria{}, 2)
		require.NoError(t, err)
		assert.Len(t, sales, 2)
	})

	t.Run("stats aggregate per neighborhood", func(t *testing.T) {
		stats, err := repo.GetStats(ctx, "downtown")
		require.NoError(t, err)
		assert.InDelta(t, 410000, stats.MedianSalePrice, 1e-6)
		assert.Equal(t, 2, stats.SampleSize)
		assert.InDelta(t, 205, stats.AveragePerSqFt, 1.0)
	})

	t.Run("missing neighborhood is not found", func(t *testing.T) {
		_, err := repo.GetStats(ctx, "atlantis")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("version changes on insert", func(t *testing.T) {
		before, err := repo.Version(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, seedSale("d", "downtown", 500000, 5)))
		after, err := repo.Version(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("insert rejects non-positive price", func(t *testing.T) {
		bad := seedSale("e", "downtown", 0, 5)
		err := repo.Insert(ctx, bad)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeComparableInvalid))
	})
}
