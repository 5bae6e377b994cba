// Package store persists catalogs as parquet tables. Geometry travels as
// WKB so coordinates round-trip without precision loss; assets and links are
// nested columns, not flattened scalars.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/polarview/icestac/internal/catalog"
)

type assetColumn struct {
	Href     string   `parquet:"href"`
	Type     string   `parquet:"type"`
	Roles    []string `parquet:"roles,list"`
	Checksum string   `parquet:"checksum"`
}

type linkColumn struct {
	Rel       string   `parquet:"rel"`
	Href      string   `parquet:"href"`
	Type      string   `parquet:"type"`
	AssetKeys []string `parquet:"asset_keys,list"`
}

type itemRow struct {
	ID          string                 `parquet:"id"`
	Type        string                 `parquet:"type"`
	StacVersion string                 `parquet:"stac_version"`
	Datetime    time.Time              `parquet:"datetime,timestamp"`
	Geometry    []byte                 `parquet:"geometry"`
	BBox        []float64              `parquet:"bbox,list"`
	Assets      map[string]assetColumn `parquet:"assets"`
	Links       []linkColumn           `parquet:"links,list"`
}

var requiredColumns = []string{
	"id", "type", "stac_version", "datetime", "geometry", "bbox", "assets", "links",
}

// FileStore reads and writes whole catalog tables. Save overwrites in place
// with no locking; concurrent writers are a known limitation of the
// pipeline, not something the store papers over.
type FileStore struct{}

func (FileStore) Load(path string) ([]catalog.Item, error) {
	if err := checkSchema(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []catalog.Item{}, nil
		}
		return nil, err
	}
	rows, err := parquet.ReadFile[itemRow](path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	items := make([]catalog.Item, 0, len(rows))
	for i, r := range rows {
		it, err := rowToItem(r)
		if err != nil {
			return nil, fmt.Errorf("catalog %s row %d: %w", path, i, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func (FileStore) Save(path string, items []catalog.Item) error {
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		r, err := itemToRow(it)
		if err != nil {
			return fmt.Errorf("encode item %q: %w", it.ID, err)
		}
		rows = append(rows, r)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write catalog %s: %w", path, err)
	}
	return nil
}

// checkSchema fails with catalog.ErrSchemaMismatch when the file exists but
// lacks one of the fixed catalog columns.
func checkSchema(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return fmt.Errorf("open catalog %s: %w", path, err)
	}
	present := map[string]bool{}
	for _, field := range pf.Schema().Fields() {
		present[field.Name()] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			return fmt.Errorf("catalog %s missing column %q: %w", path, col, catalog.ErrSchemaMismatch)
		}
	}
	return nil
}

func itemToRow(it catalog.Item) (itemRow, error) {
	data, err := wkb.Marshal(it.Geometry)
	if err != nil {
		return itemRow{}, fmt.Errorf("marshal geometry: %w", err)
	}
	assets := make(map[string]assetColumn, len(it.Assets))
	for k, a := range it.Assets {
		assets[k] = assetColumn{Href: a.Href, Type: a.Type, Roles: a.Roles, Checksum: a.Checksum}
	}
	links := make([]linkColumn, len(it.Links))
	for i, l := range it.Links {
		links[i] = linkColumn{Rel: l.Rel, Href: l.Href, Type: l.Type, AssetKeys: l.AssetKeys}
	}
	return itemRow{
		ID:          it.ID,
		Type:        it.Type,
		StacVersion: it.StacVersion,
		Datetime:    it.Datetime.UTC(),
		Geometry:    data,
		BBox:        it.BBox[:],
		Assets:      assets,
		Links:       links,
	}, nil
}

func rowToItem(r itemRow) (catalog.Item, error) {
	g, err := wkb.Unmarshal(r.Geometry)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("unmarshal geometry: %w", err)
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		return catalog.Item{}, fmt.Errorf("geometry is %T, want polygon", g)
	}
	var bbox [4]float64
	if len(r.BBox) != len(bbox) {
		return catalog.Item{}, fmt.Errorf("bbox has %d values, want 4: %w", len(r.BBox), catalog.ErrSchemaMismatch)
	}
	copy(bbox[:], r.BBox)
	assets := make(map[string]catalog.Asset, len(r.Assets))
	for k, a := range r.Assets {
		assets[k] = catalog.Asset{Href: a.Href, Type: a.Type, Roles: a.Roles, Checksum: a.Checksum}
	}
	links := make([]catalog.Link, len(r.Links))
	for i, l := range r.Links {
		links[i] = catalog.Link{Rel: l.Rel, Href: l.Href, Type: l.Type, AssetKeys: l.AssetKeys}
	}
	return catalog.Item{
		ID:          r.ID,
		Type:        r.Type,
		StacVersion: r.StacVersion,
		Datetime:    r.Datetime.UTC(),
		Geometry:    poly,
		BBox:        bbox,
		Assets:      assets,
		Links:       links,
	}, nil
}
