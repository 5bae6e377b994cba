package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polarview/icestac/internal/catalog"
	"github.com/polarview/icestac/internal/config"
	"github.com/polarview/icestac/internal/geo"
)

type memStore struct{ tables map[string][]catalog.Item }

func (m memStore) Load(path string) ([]catalog.Item, error) { return m.tables[path], nil }

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	it, err := catalog.Synthesize(day, "daily_2024-01-01", []catalog.AssetSpec{
		{Geometry: geo.Rect(0, 0, 1, 1), Href: "https://x/20240101_A.fgb"},
		{Geometry: geo.Rect(2, 2, 3, 3), Href: "https://x/20240101_B.fgb"},
	}, catalog.MediaTypeFlatGeobuf)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	it.Links = catalog.AttachStyleLink(it, "https://styles.example.com/ice.json")

	cfg := config.Config{Catalog: config.CatalogConfig{GroupedPath: "daily.parquet", ZipPath: "zips.parquet"}}
	st := memStore{tables: map[string][]catalog.Item{"daily.parquet": {it}}}
	return Handler(cfg, st, slog.New(slog.DiscardHandler), nil)
}

func TestItems_FeatureCollection(t *testing.T) {
	h := testHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string    `json:"id"`
			BBox       []float64 `json:"bbox"`
			Properties struct {
				StacVersion string         `json:"stac_version"`
				Datetime    string         `json:"datetime"`
				Assets      map[string]any `json:"assets"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, rec.Body.String())
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("body=%s", rec.Body.String())
	}
	f := fc.Features[0]
	if f.ID != "daily_2024-01-01" {
		t.Fatalf("id=%q", f.ID)
	}
	if len(f.BBox) != 4 || f.BBox[2] != 3 {
		t.Fatalf("bbox=%v", f.BBox)
	}
	if len(f.Properties.Assets) != 2 {
		t.Fatalf("assets=%v", f.Properties.Assets)
	}
	if f.Properties.StacVersion != catalog.StacVersion {
		t.Fatalf("stac_version=%q", f.Properties.StacVersion)
	}
}

func TestItem_ByID(t *testing.T) {
	h := testHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/daily_2024-01-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/daily_1999-01-01", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := testHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}
