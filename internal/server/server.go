// Package server exposes the two catalogs over a small read-only HTTP API,
// rendering items as GeoJSON features.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/polarview/icestac/internal/catalog"
	"github.com/polarview/icestac/internal/config"
	"github.com/polarview/icestac/internal/metrics"
)

// Store is the read side of the catalog store.
type Store interface {
	Load(path string) ([]catalog.Item, error)
}

// Handler builds the API router. Catalogs are re-read from disk per request;
// the tables are small and the files are the single source of truth.
func Handler(cfg config.Config, st Store, log *slog.Logger, prov *metrics.Provider) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(log))
	r.Use(requestLog(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if prov != nil {
		r.Method(http.MethodGet, "/metrics", prov.Handler())
	}

	r.Get("/items", listHandler(cfg.Catalog.GroupedPath, st, log))
	r.Get("/items/{id}", itemHandler(cfg.Catalog.GroupedPath, st, log))
	r.Get("/zips", listHandler(cfg.Catalog.ZipPath, st, log))
	r.Get("/zips/{id}", itemHandler(cfg.Catalog.ZipPath, st, log))

	return r
}

// Run serves the API until the context is cancelled.
func Run(ctx context.Context, cfg config.Config, st Store, log *slog.Logger, prov *metrics.Provider) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           Handler(cfg, st, log, prov),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listen", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func listHandler(path string, st Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := st.Load(path)
		if err != nil {
			log.Error("load catalog", "path", path, "err", err)
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
		fc := geojson.NewFeatureCollection()
		for _, it := range items {
			fc.Append(toFeature(it))
		}
		writeJSON(w, fc)
	}
}

func itemHandler(path string, st Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		items, err := st.Load(path)
		if err != nil {
			log.Error("load catalog", "path", path, "err", err)
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
		for _, it := range items {
			if it.ID == id {
				writeJSON(w, toFeature(it))
				return
			}
		}
		http.Error(w, "no such item", http.StatusNotFound)
	}
}

func toFeature(it catalog.Item) *geojson.Feature {
	f := geojson.NewFeature(it.Geometry)
	f.ID = it.ID
	f.BBox = geojson.BBox(it.BBox[:])

	assets := make(map[string]any, len(it.Assets))
	for _, k := range catalog.OrderedAssetKeys(it.Assets) {
		a := it.Assets[k]
		assets[k] = map[string]any{
			"href":     a.Href,
			"type":     a.Type,
			"roles":    a.Roles,
			"checksum": a.Checksum,
		}
	}
	links := make([]any, len(it.Links))
	for i, l := range it.Links {
		links[i] = map[string]any{
			"rel":        l.Rel,
			"href":       l.Href,
			"type":       l.Type,
			"asset:keys": l.AssetKeys,
		}
	}
	f.Properties = geojson.Properties{
		"stac_version": it.StacVersion,
		"datetime":     it.Datetime.Format(time.RFC3339),
		"assets":       assets,
		"links":        links,
	}
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(v)
}

func requestLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("http request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("handler panic", "path", r.URL.Path, "panic", rec)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
