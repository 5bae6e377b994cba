// Package syncer drives one catalog synchronization run: discovery, strictly
// sequential per-folder repackaging, item synthesis, catalog append, style
// attachment and the per-day merge pass.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polarview/icestac/internal/catalog"
	"github.com/polarview/icestac/internal/config"
	"github.com/polarview/icestac/internal/discover"
	"github.com/polarview/icestac/internal/logger"
	"github.com/polarview/icestac/internal/metrics"
	"github.com/polarview/icestac/internal/repack"
)

type Discoverer interface {
	List(ctx context.Context) ([]discover.Folder, error)
}

type Processor interface {
	Process(ctx context.Context, folder string, date time.Time) (repack.Result, error)
}

type CatalogStore interface {
	Load(path string) ([]catalog.Item, error)
	Save(path string, items []catalog.Item) error
}

type AssetUploader interface {
	Upload(ctx context.Context, localPath, contentType string) error
}

// Summary reports what one run did.
type Summary struct {
	Discovered  int
	Processed   int
	Skipped     int
	Failed      int
	NewZipItems int
	GroupedDiag catalog.Diagnostics
}

type Syncer struct {
	cfg   config.Config
	disc  Discoverer
	pack  Processor
	store CatalogStore
	pub   AssetUploader // nil disables publishing
	log   *slog.Logger
	met   *metrics.Provider // nil disables metrics
}

func New(cfg config.Config, disc Discoverer, pack Processor, store CatalogStore, pub AssetUploader, log *slog.Logger, met *metrics.Provider) *Syncer {
	return &Syncer{cfg: cfg, disc: disc, pack: pack, store: store, pub: pub, log: log, met: met}
}

// Run executes one full synchronization pass. Folders are processed one at a
// time; a folder that fails is logged and skipped, never retried. The two
// catalog files are read then overwritten without locking, which is not safe
// against concurrent runs.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	ctx = logger.WithRunID(ctx, logger.NewRunID())
	sum := Summary{}

	folders, err := s.disc.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("discover folders: %w", err)
	}
	sum.Discovered = len(folders)

	zipItems, err := s.store.Load(s.cfg.Catalog.ZipPath)
	if err != nil {
		return sum, err
	}
	seen := make(map[string]struct{}, len(zipItems))
	for _, it := range zipItems {
		seen[it.ID] = struct{}{}
	}

	type dayGroup struct {
		date  time.Time
		specs []catalog.AssetSpec
	}
	var dayOrder []string
	days := make(map[string]*dayGroup)

	for _, f := range folders {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if _, ok := seen[f.Name]; ok {
			sum.Skipped++
			s.count(func(p *metrics.Provider) { p.FoldersSkipped.Inc() })
			continue
		}
		fctx := logger.WithFolder(ctx, f.Name)

		res, err := s.pack.Process(fctx, f.Name, f.Date)
		if err != nil {
			s.log.WarnContext(fctx, "folder skipped", "folder", f.Name, "err", err)
			sum.Failed++
			s.count(func(p *metrics.Provider) { p.FoldersFailed.Inc() })
			continue
		}
		if err := s.publish(fctx, res); err != nil {
			s.log.WarnContext(fctx, "publish failed, folder skipped", "folder", f.Name, "err", err)
			sum.Failed++
			s.count(func(p *metrics.Provider) { p.FoldersFailed.Inc() })
			continue
		}

		zipURL := assetURL(s.cfg.Assets.ZipBaseURL, f.Name+".zip")
		fgbURL := assetURL(s.cfg.Assets.FGBBaseURL, f.Name+".fgb")

		item, err := catalog.Synthesize(f.Date, f.Name, []catalog.AssetSpec{{
			Geometry: res.Geometry,
			Href:     zipURL,
			Checksum: res.ZipChecksum,
		}}, catalog.MediaTypeZip)
		if err != nil {
			return sum, fmt.Errorf("zip item %s: %w", f.Name, err)
		}
		zipItems = append(zipItems, item)
		seen[f.Name] = struct{}{}
		sum.NewZipItems++

		day := f.Date.Format("2006-01-02")
		g, ok := days[day]
		if !ok {
			g = &dayGroup{date: f.Date}
			days[day] = g
			dayOrder = append(dayOrder, day)
		}
		g.specs = append(g.specs, catalog.AssetSpec{Geometry: res.Geometry, Href: fgbURL})

		sum.Processed++
		s.count(func(p *metrics.Provider) { p.FoldersProcessed.Inc() })
		s.log.InfoContext(fctx, "folder catalogued", "folder", f.Name, "zip", zipURL, "fgb", fgbURL)
	}

	if sum.NewZipItems > 0 {
		if err := s.store.Save(s.cfg.Catalog.ZipPath, zipItems); err != nil {
			return sum, err
		}
		s.log.InfoContext(ctx, "zip catalog updated", "path", s.cfg.Catalog.ZipPath, "new_items", sum.NewZipItems)
	} else {
		s.log.InfoContext(ctx, "no new zip items")
	}

	if len(dayOrder) == 0 {
		s.log.InfoContext(ctx, "no new grouped items")
		s.observeRun(started)
		return sum, nil
	}

	grouped, err := s.store.Load(s.cfg.Catalog.GroupedPath)
	if err != nil {
		return sum, err
	}
	for _, day := range dayOrder {
		g := days[day]
		it, err := catalog.Synthesize(g.date, "daily_"+day, g.specs, catalog.MediaTypeFlatGeobuf)
		if err != nil {
			return sum, fmt.Errorf("grouped item %s: %w", day, err)
		}
		it.Links = catalog.AttachStyleLink(it, s.cfg.Assets.StyleURL)
		grouped = append(grouped, it)
	}

	merged, diag, err := catalog.Merge(grouped)
	if err != nil {
		return sum, fmt.Errorf("merge grouped catalog: %w", err)
	}
	sum.GroupedDiag = diag
	for _, id := range diag.DatetimeConflicts {
		s.log.WarnContext(ctx, "merge partition datetime mismatch, identifier collision upstream?", "id", id)
	}
	if err := s.store.Save(s.cfg.Catalog.GroupedPath, merged); err != nil {
		return sum, err
	}

	if s.met != nil {
		s.met.ItemsMerged.Set(float64(diag.Partitions))
		s.met.AssetsFlattened.Add(float64(diag.AssetsFlattened))
		s.met.LinksDeduped.Add(float64(diag.LinksDeduped))
		s.met.DayConflicts.Add(float64(len(diag.DatetimeConflicts)))
	}
	s.observeRun(started)

	s.log.InfoContext(ctx, "grouped catalog updated",
		"path", s.cfg.Catalog.GroupedPath,
		"items", diag.Partitions,
		"merged_from", diag.ItemsIn)
	return sum, nil
}

func (s *Syncer) publish(ctx context.Context, res repack.Result) error {
	if s.pub == nil {
		return nil
	}
	if err := s.pub.Upload(ctx, res.ZipPath, catalog.MediaTypeZip); err != nil {
		return err
	}
	return s.pub.Upload(ctx, res.FGBPath, catalog.MediaTypeFlatGeobuf)
}

func (s *Syncer) count(f func(*metrics.Provider)) {
	if s.met != nil {
		f(s.met)
	}
}

func (s *Syncer) observeRun(started time.Time) {
	if s.met != nil {
		s.met.SyncDuration.Observe(time.Since(started).Seconds())
	}
}

func assetURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

// MergeCatalog re-runs the merge pass over the stored grouped catalog,
// without syncing. Used to compact a table accumulated by older runs.
func MergeCatalog(store CatalogStore, path string) (catalog.Diagnostics, error) {
	items, err := store.Load(path)
	if err != nil {
		return catalog.Diagnostics{}, err
	}
	merged, diag, err := catalog.Merge(items)
	if err != nil {
		return diag, err
	}
	if err := store.Save(path, merged); err != nil {
		return diag, err
	}
	return diag, nil
}
