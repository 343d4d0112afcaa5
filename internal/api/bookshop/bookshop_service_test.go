package bookshop

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListLive(ctx context.Context) ([]types.Bookshop, error) {
	args := m.Called(ctx)
	shops, _ := args.Get(0).([]types.Bookshop)
	return shops, args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.BookshopDetail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*types.BookshopDetail)
	return detail, args.Error(1)
}

func (m *MockRepository) GetBySlug(ctx context.Context, slug string) (*types.BookshopDetail, error) {
	args := m.Called(ctx, slug)
	detail, _ := args.Get(0).(*types.BookshopDetail)
	return detail, args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, slug string, req types.CreateBookshopRequest) (uuid.UUID, error) {
	args := m.Called(ctx, slug, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, id uuid.UUID, req types.UpdateBookshopRequest) error {
	return m.Called(ctx, id, req).Error(0)
}

func (m *MockRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) Purge(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) BulkImport(ctx context.Context, shops []types.CreateBookshopRequest) (int64, error) {
	args := m.Called(ctx, shops)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ApplyEnrichment(ctx context.Context, id uuid.UUID, update types.EnrichmentUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *MockRepository) ListUnenriched(ctx context.Context, limit int) ([]types.Bookshop, error) {
	args := m.Called(ctx, limit)
	shops, _ := args.Get(0).([]types.Bookshop)
	return shops, args.Error(1)
}

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate() {
	m.Called()
}

func validRequest() types.CreateBookshopRequest {
	return types.CreateBookshopRequest{
		Name:  "City Lights",
		City:  "San Francisco",
		State: "CA",
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "powells-books-portland", Slugify("Powell's Books", "Portland"))
	assert.Equal(t, "city-lights-san-francisco", Slugify("City Lights", "San Francisco"))
	assert.Equal(t, "barts-books-ojai", Slugify("Bart's Books!", "Ojai"))
	assert.Equal(t, "readers-corner-raleigh", Slugify("Reader’s Corner", "Raleigh"))
}

func TestCreateValidatesSubmission(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, slog.Default())

	cases := []types.CreateBookshopRequest{
		{City: "Portland", State: "OR"},
		{Name: "No City", State: "OR"},
		{Name: "No State", City: "Portland"},
		{Name: "  ", City: "Portland", State: "OR"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		assert.Error(t, err)
	}
	repo.AssertNotCalled(t, "Create")
}

func TestCreateSlugsAndInvalidates(t *testing.T) {
	repo := new(MockRepository)
	inv := new(MockInvalidator)
	svc := NewService(repo, inv, slog.Default())

	id := uuid.New()
	repo.On("Create", mock.Anything, "city-lights-san-francisco", validRequest()).Return(id, nil)
	inv.On("Invalidate").Return()

	got, err := svc.Create(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, id, got)
	repo.AssertExpectations(t)
	inv.AssertExpectations(t)
}

func TestGetByIDOrSlugPrefersUUID(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, slog.Default())

	id := uuid.New()
	detail := &types.BookshopDetail{Bookshop: types.Bookshop{ID: id}}
	repo.On("GetByID", mock.Anything, id).Return(detail, nil)

	got, err := svc.GetByIDOrSlug(context.Background(), id.String())

	require.NoError(t, err)
	assert.Equal(t, detail, got)
	repo.AssertNotCalled(t, "GetBySlug")
}

func TestGetByIDOrSlugFallsBackToSlug(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, slog.Default())

	detail := &types.BookshopDetail{Bookshop: types.Bookshop{Slug: "city-lights-san-francisco"}}
	repo.On("GetBySlug", mock.Anything, "city-lights-san-francisco").Return(detail, nil)

	got, err := svc.GetByIDOrSlug(context.Background(), "city-lights-san-francisco")

	require.NoError(t, err)
	assert.Equal(t, detail, got)
	repo.AssertNotCalled(t, "GetByID")
}

func TestSoftDeleteInvalidates(t *testing.T) {
	repo := new(MockRepository)
	inv := new(MockInvalidator)
	svc := NewService(repo, inv, slog.Default())

	id := uuid.New()
	repo.On("SoftDelete", mock.Anything, id).Return(nil)
	inv.On("Invalidate").Return()

	require.NoError(t, svc.SoftDelete(context.Background(), id))
	inv.AssertExpectations(t)
}

func TestSoftDeleteErrorSkipsInvalidate(t *testing.T) {
	repo := new(MockRepository)
	inv := new(MockInvalidator)
	svc := NewService(repo, inv, slog.Default())

	id := uuid.New()
	repo.On("SoftDelete", mock.Anything, id).Return(ErrNotFound)

	assert.ErrorIs(t, svc.SoftDelete(context.Background(), id), ErrNotFound)
	inv.AssertNotCalled(t, "Invalidate")
}

func TestBulkImportValidatesEveryRecord(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, slog.Default())

	shops := []types.CreateBookshopRequest{
		validRequest(),
		{Name: "Missing City", State: "OR"},
	}
	_, err := svc.BulkImport(context.Background(), shops)

	assert.ErrorContains(t, err, "record 1")
	repo.AssertNotCalled(t, "BulkImport")
}

func TestBulkImportInvalidatesOnSuccess(t *testing.T) {
	repo := new(MockRepository)
	inv := new(MockInvalidator)
	svc := NewService(repo, inv, slog.Default())

	shops := []types.CreateBookshopRequest{validRequest()}
	repo.On("BulkImport", mock.Anything, shops).Return(int64(1), nil)
	inv.On("Invalidate").Return()

	n, err := svc.BulkImport(context.Background(), shops)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	inv.AssertExpectations(t)
}
