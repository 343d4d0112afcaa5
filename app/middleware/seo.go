package appMiddleware

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

// ShopResolver looks up a live bookshop by its URL slug.
type ShopResolver interface {
	GetBySlug(ctx context.Context, slug string) (*types.BookshopDetail, error)
}

// MetaInjector serves the SPA shell for /shops/{slug} pages with
// title, description and OpenGraph tags inserted before </head>, so
// crawlers see per-shop metadata without executing scripts.
type MetaInjector struct {
	logger   *slog.Logger
	resolver ShopResolver
	shell    []byte
	siteName string
	baseURL  string
}

func NewMetaInjector(logger *slog.Logger, resolver ShopResolver, shell []byte, siteName, baseURL string) *MetaInjector {
	return &MetaInjector{
		logger:   logger,
		resolver: resolver,
		shell:    shell,
		siteName: siteName,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (m *MetaInjector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/shops/"), "/")
	if slug == "" || strings.Contains(slug, "/") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(m.shell)
		return
	}

	shop, err := m.resolver.GetBySlug(r.Context(), slug)
	if err != nil {
		m.logger.WarnContext(r.Context(), "meta lookup failed", slog.String("slug", slug), slog.Any("error", err))
	}

	body := m.shell
	if shop != nil {
		body = injectMeta(m.shell, m.renderTags(shop))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

func (m *MetaInjector) renderTags(shop *types.BookshopDetail) []byte {
	title := fmt.Sprintf("%s | %s, %s | %s", shop.Name, shop.City, shop.State, m.siteName)
	desc := shop.Description
	if desc == "" {
		desc = fmt.Sprintf("%s is an independent bookshop in %s, %s.", shop.Name, shop.City, shop.State)
	}
	pageURL := fmt.Sprintf("%s/shops/%s", m.baseURL, shop.Slug)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(desc))
	fmt.Fprintf(&b, "<meta property=\"og:title\" content=\"%s\">\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<meta property=\"og:description\" content=\"%s\">\n", html.EscapeString(desc))
	fmt.Fprintf(&b, "<meta property=\"og:type\" content=\"website\">\n")
	fmt.Fprintf(&b, "<meta property=\"og:url\" content=\"%s\">\n", html.EscapeString(pageURL))
	fmt.Fprintf(&b, "<meta property=\"og:site_name\" content=\"%s\">\n", html.EscapeString(m.siteName))
	return b.Bytes()
}

func injectMeta(shell, tags []byte) []byte {
	idx := bytes.Index(shell, []byte("</head>"))
	if idx < 0 {
		return shell
	}
	out := make([]byte, 0, len(shell)+len(tags))
	out = append(out, shell[:idx]...)
	out = append(out, tags...)
	out = append(out, shell[idx:]...)
	return out
}
