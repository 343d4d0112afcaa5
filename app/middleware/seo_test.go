package appMiddleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

type stubResolver struct {
	shop *types.BookshopDetail
	err  error
}

func (s *stubResolver) GetBySlug(_ context.Context, _ string) (*types.BookshopDetail, error) {
	return s.shop, s.err
}

const testShell = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body></body></html>`

func testShop() *types.BookshopDetail {
	return &types.BookshopDetail{Bookshop: types.Bookshop{
		Name:        "City Lights",
		Slug:        "city-lights-san-francisco",
		City:        "San Francisco",
		State:       "CA",
		Description: "A landmark independent bookstore & publisher",
	}}
}

func serve(inj *MetaInjector, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	inj.ServeHTTP(rec, req)
	return rec
}

func TestMetaInjectorAddsTagsBeforeHead(t *testing.T) {
	inj := NewMetaInjector(slog.Default(), &stubResolver{shop: testShop()},
		[]byte(testShell), "Bookshop Directory", "https://example.com/")

	rec := serve(inj, "/shops/city-lights-san-francisco")

	body := rec.Body.String()
	assert.Contains(t, body, "<title>City Lights | San Francisco, CA | Bookshop Directory</title>")
	assert.Contains(t, body, `property="og:url" content="https://example.com/shops/city-lights-san-francisco"`)
	assert.Contains(t, body, `name="description"`)

	// Tags land inside the head, not after it.
	assert.Less(t, strings.Index(body, "<title>"), strings.Index(body, "</head>"))
}

func TestMetaInjectorEscapesHTML(t *testing.T) {
	shop := testShop()
	shop.Name = `<script>alert("x")</script>`
	inj := NewMetaInjector(slog.Default(), &stubResolver{shop: shop},
		[]byte(testShell), "Bookshop Directory", "https://example.com")

	body := serve(inj, "/shops/city-lights-san-francisco").Body.String()
	assert.NotContains(t, body, `<script>alert`)
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestMetaInjectorUnknownSlugServesPlainShell(t *testing.T) {
	inj := NewMetaInjector(slog.Default(), &stubResolver{err: errors.New("not found")},
		[]byte(testShell), "Bookshop Directory", "https://example.com")

	rec := serve(inj, "/shops/no-such-shop")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testShell, rec.Body.String())
}

func TestMetaInjectorBackfillsMissingDescription(t *testing.T) {
	shop := testShop()
	shop.Description = ""
	inj := NewMetaInjector(slog.Default(), &stubResolver{shop: shop},
		[]byte(testShell), "Bookshop Directory", "https://example.com")

	body := serve(inj, "/shops/city-lights-san-francisco").Body.String()
	assert.Contains(t, body, "City Lights is an independent bookshop in San Francisco, CA.")
}
