package catalog

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/polarview/icestac/internal/geo"
)

// Diagnostics reports what a merge pass did. DatetimeConflicts lists the ids
// of partitions whose members disagree on the calendar day; that indicates
// an upstream identifier collision and is flagged rather than trusted, but
// the merge still completes with the first member's datetime.
type Diagnostics struct {
	ItemsIn           int
	Partitions        int
	AssetsFlattened   int
	LinksDeduped      int
	DatetimeConflicts []string
}

// Merge collapses a catalog that may contain multiple records per id into
// exactly one record per id. Output partitions are sorted by id; members keep
// their first-seen order within a partition, so reruns are byte-stable.
//
// Per partition: the geometry is the envelope of every member's geometry,
// assets are flattened in member order (dropping empty entries, keeping
// duplicate hrefs) and re-keyed to a contiguous asset_0..asset_{n-1} space,
// and links are deduplicated by (rel, href) keeping the first occurrence.
// Merging the output again is a no-op.
func Merge(items []Item) ([]Item, Diagnostics, error) {
	diag := Diagnostics{ItemsIn: len(items)}
	if len(items) == 0 {
		return []Item{}, diag, nil
	}

	ids := make([]string, 0, len(items))
	parts := make(map[string][]Item, len(items))
	for _, it := range items {
		if _, ok := parts[it.ID]; !ok {
			ids = append(ids, it.ID)
		}
		parts[it.ID] = append(parts[it.ID], it)
	}
	sort.Strings(ids)

	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		merged, err := mergePartition(id, parts[id], &diag)
		if err != nil {
			return nil, diag, err
		}
		out = append(out, merged)
	}
	diag.Partitions = len(out)
	return out, diag, nil
}

func mergePartition(id string, members []Item, diag *Diagnostics) (Item, error) {
	geoms := make([]orb.Geometry, 0, len(members))
	for _, m := range members {
		if m.Geometry != nil {
			geoms = append(geoms, m.Geometry)
		}
	}
	env, err := geo.Envelope(geoms)
	if err != nil {
		return Item{}, fmt.Errorf("merge partition %q: %w", id, err)
	}

	// Flatten assets in member order. Duplicate hrefs are kept on purpose:
	// only links are deduplicated, never assets.
	assets := make(map[string]Asset)
	next := 0
	for _, m := range members {
		for _, k := range OrderedAssetKeys(m.Assets) {
			a := m.Assets[k]
			if a.Href == "" {
				continue
			}
			assets[AssetKey(next)] = a
			next++
			diag.AssetsFlattened++
		}
	}

	type linkKey struct{ rel, href string }
	seen := make(map[linkKey]struct{})
	links := make([]Link, 0)
	for _, m := range members {
		for _, l := range m.Links {
			k := linkKey{l.Rel, l.Href}
			if _, ok := seen[k]; ok {
				diag.LinksDeduped++
				continue
			}
			seen[k] = struct{}{}
			links = append(links, l)
		}
	}

	dt := members[0].Datetime
	for _, m := range members[1:] {
		if !m.Datetime.Equal(dt) {
			diag.DatetimeConflicts = append(diag.DatetimeConflicts, id)
			break
		}
	}

	return Item{
		ID:          id,
		Type:        TypeFeature,
		StacVersion: StacVersion,
		Datetime:    dt,
		Geometry:    env,
		BBox:        geo.BBox(env),
		Assets:      assets,
		Links:       links,
	}, nil
}
