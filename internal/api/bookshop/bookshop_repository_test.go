package bookshop

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/bookshop-directory/app/observability/metrics"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewPostgresRepository(mockPool, slog.Default())
}

func TestListLiveScansRows(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	id := uuid.New()
	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "slug", "name", "street", "city", "state", "county", "zip",
		"latitude", "longitude", "description", "feature_ids",
		"live", "created_at", "updated_at",
	}).AddRow(
		id, "city-lights-san-francisco", "City Lights", "261 Columbus Ave",
		"San Francisco", "CA", "San Francisco", "94133",
		"37.7976", "-122.4065", "A landmark independent bookstore", []int{1, 5},
		true, now, now,
	)
	mockPool.ExpectQuery("SELECT (.+) FROM bookshops b").WillReturnRows(rows)

	shops, err := repo.ListLive(context.Background())

	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, id, shops[0].ID)
	assert.Equal(t, "City Lights", shops[0].Name)
	assert.Equal(t, []int{1, 5}, shops[0].FeatureIDs)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSoftDeleteUnknownIDReturnsNotFound(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectExec("UPDATE bookshops SET live = FALSE").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SoftDelete(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSoftDeleteFlipsLiveFlag(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectExec("UPDATE bookshops SET live = FALSE").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.SoftDelete(context.Background(), id))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPurgeRequiresPermanentlyClosed(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	id := uuid.New()
	mockPool.ExpectExec("DELETE FROM bookshops WHERE id = (.+) AND business_status").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Purge(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotPermanentlyClosed)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateInsertsShopAndFeatures(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	id := uuid.New()
	req := types.CreateBookshopRequest{
		Name: "City Lights", City: "San Francisco", State: "CA",
		FeatureIDs: []int{1, 5},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("INSERT INTO bookshops").
		WithArgs("city-lights-san-francisco", req.Name, req.Street, req.City, req.State,
			req.County, req.Zip, req.Latitude, req.Longitude, req.Description).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mockPool.ExpectExec("DELETE FROM bookshop_features").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mockPool.ExpectExec("INSERT INTO bookshop_features").
		WithArgs(id, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO bookshop_features").
		WithArgs(id, 5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	got, err := repo.Create(context.Background(), "city-lights-san-francisco", req)

	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListLiveCountsQueryErrors(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	// Instruments come from the global meter provider; the error branch
	// records db_query_errors_total and still surfaces the wrapped error.
	metrics.InitAppMetrics()
	mockPool.ExpectQuery("SELECT (.+) FROM bookshops b").
		WillReturnError(errors.New("connection reset"))

	shops, err := repo.ListLive(context.Background())

	assert.Nil(t, shops)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to query live bookshops")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	mockPool, repo := newMockRepo(t)

	id := uuid.New()
	name := "Renamed"
	req := types.UpdateBookshopRequest{Name: &name}

	mockPool.ExpectBegin()
	mockPool.ExpectExec("UPDATE bookshops SET").
		WithArgs(id, req.Name, req.Street, req.City, req.State, req.County, req.Zip,
			req.Latitude, req.Longitude, req.Description, req.Live).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectRollback()

	err := repo.Update(context.Background(), id, req)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
