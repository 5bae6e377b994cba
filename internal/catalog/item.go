// Package catalog implements the STAC-like item model shared by the zip and
// grouped catalogs: record synthesis, style-link attachment, and the per-day
// merge pass that collapses records accumulated across runs.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/polarview/icestac/internal/geo"
)

const (
	TypeFeature = "Feature"
	StacVersion = "1.0.0"

	MediaTypeZip         = "application/zip"
	MediaTypeFlatGeobuf  = "application/vnd.flatgeobuf"
	MediaTypeVectorStyle = "text/vector-styles"

	RelStyle = "style"
	RoleData = "data"
)

// ErrInvalidInput is geo.ErrInvalidInput; both packages fail the same way on
// empty collections so callers match a single sentinel.
var ErrInvalidInput = geo.ErrInvalidInput

// ErrSchemaMismatch marks a persisted catalog table missing an expected
// column. Surfaced by the store, never recovered.
var ErrSchemaMismatch = errors.New("catalog schema mismatch")

// Asset is one downloadable file attached to an item. Checksum is the
// xxhash64 of the packaged archive, empty when unknown.
type Asset struct {
	Href     string
	Type     string
	Roles    []string
	Checksum string
}

// Link is one entry of an item's links sequence. AssetKeys names the asset
// labels the link applies to.
type Link struct {
	Rel       string
	Href      string
	Type      string
	AssetKeys []string
}

// Item is one row of a catalog. Geometry is always an axis-aligned envelope
// and BBox is always recomputed from it.
type Item struct {
	ID          string
	Type        string
	StacVersion string
	Datetime    time.Time
	Geometry    orb.Polygon
	BBox        [4]float64
	Assets      map[string]Asset
	Links       []Link
}

// AssetSpec is one (geometry, URL) input pair for synthesis.
type AssetSpec struct {
	Geometry orb.Geometry
	Href     string
	Checksum string
}

// AssetKey returns the label for the i-th asset of an item.
func AssetKey(i int) string { return "asset_" + strconv.Itoa(i) }

// Synthesize builds one catalog record from a date, an identifier and an
// ordered list of asset specs. Assets are re-keyed to asset_0..asset_{n-1}
// in input order; links start empty. Identical inputs always yield an
// identical record.
func Synthesize(date time.Time, id string, specs []AssetSpec, mediaType string) (Item, error) {
	if id == "" {
		return Item{}, fmt.Errorf("synthesize: empty item id: %w", ErrInvalidInput)
	}
	if date.IsZero() {
		return Item{}, fmt.Errorf("synthesize %q: zero date: %w", id, ErrInvalidInput)
	}
	if len(specs) == 0 {
		return Item{}, fmt.Errorf("synthesize %q: no asset specs: %w", id, ErrInvalidInput)
	}

	geoms := make([]orb.Geometry, len(specs))
	for i, s := range specs {
		if s.Geometry == nil {
			return Item{}, fmt.Errorf("synthesize %q: asset %d has no geometry: %w", id, i, ErrInvalidInput)
		}
		geoms[i] = s.Geometry
	}
	env, err := geo.Envelope(geoms)
	if err != nil {
		return Item{}, fmt.Errorf("synthesize %q: %w", id, err)
	}

	assets := make(map[string]Asset, len(specs))
	for i, s := range specs {
		assets[AssetKey(i)] = Asset{
			Href:     s.Href,
			Type:     mediaType,
			Roles:    []string{RoleData},
			Checksum: s.Checksum,
		}
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return Item{
		ID:          id,
		Type:        TypeFeature,
		StacVersion: StacVersion,
		Datetime:    day,
		Geometry:    env,
		BBox:        geo.BBox(env),
		Assets:      assets,
		Links:       []Link{},
	}, nil
}

// OrderedAssetKeys returns the asset labels sorted by their numeric suffix,
// recovering insertion order for the asset_N key scheme. Keys outside the
// scheme sort last, lexically.
func OrderedAssetKeys(assets map[string]Asset) []string {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := assetIndex(keys[i]), assetIndex(keys[j])
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func assetIndex(key string) int {
	rest, ok := strings.CutPrefix(key, "asset_")
	if !ok {
		return math.MaxInt
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return math.MaxInt
	}
	return n
}
