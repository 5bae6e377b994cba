package catalog

import (
	"reflect"
	"testing"
	"time"

	"github.com/polarview/icestac/internal/geo"
)

func mustSynthesize(t *testing.T, date time.Time, id string, sp []AssetSpec, media string) Item {
	t.Helper()
	it, err := Synthesize(date, id, sp, media)
	if err != nil {
		t.Fatalf("Synthesize %s: %v", id, err)
	}
	return it
}

func mustMerge(t *testing.T, items []Item) ([]Item, Diagnostics) {
	t.Helper()
	out, diag, err := Merge(items)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return out, diag
}

func TestMerge_EmptyCatalog(t *testing.T) {
	out, diag := mustMerge(t, nil)
	if len(out) != 0 {
		t.Fatalf("len=%d want 0", len(out))
	}
	if diag.Partitions != 0 || diag.ItemsIn != 0 {
		t.Fatalf("diag=%+v", diag)
	}
}

// The two-folder same-day scenario: disjoint rectangles from 20240101_A and
// 20240101_B merged under one daily identifier.
func TestMerge_TwoFoldersSameDay(t *testing.T) {
	a := mustSynthesize(t, testDay, "daily_2024-01-01",
		[]AssetSpec{{Geometry: geo.Rect(0, 0, 1, 1), Href: "https://x/20240101_A.fgb"}}, MediaTypeFlatGeobuf)
	b := mustSynthesize(t, testDay, "daily_2024-01-01",
		[]AssetSpec{{Geometry: geo.Rect(2, 2, 3, 3), Href: "https://x/20240101_B.fgb"}}, MediaTypeFlatGeobuf)

	out, diag := mustMerge(t, []Item{a, b})
	if len(out) != 1 {
		t.Fatalf("len=%d want 1", len(out))
	}
	got := out[0]
	if got.ID != "daily_2024-01-01" {
		t.Fatalf("id=%q", got.ID)
	}
	if got.BBox != [4]float64{0, 0, 3, 3} {
		t.Fatalf("bbox=%v want [0 0 3 3]", got.BBox)
	}
	if len(got.Assets) != 2 {
		t.Fatalf("assets=%d want 2", len(got.Assets))
	}
	if got.Assets["asset_0"].Href != "https://x/20240101_A.fgb" || got.Assets["asset_1"].Href != "https://x/20240101_B.fgb" {
		t.Fatalf("assets not re-keyed in member order: %+v", got.Assets)
	}
	if len(got.Links) != 0 {
		t.Fatalf("links=%v want none (no style url configured)", got.Links)
	}
	if diag.AssetsFlattened != 2 || diag.Partitions != 1 {
		t.Fatalf("diag=%+v", diag)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	day2 := testDay.AddDate(0, 0, 1)
	items := []Item{
		mustSynthesize(t, testDay, "daily_2024-01-01",
			[]AssetSpec{{Geometry: geo.Rect(0, 0, 1, 1), Href: "https://x/a.fgb"}}, MediaTypeFlatGeobuf),
		mustSynthesize(t, testDay, "daily_2024-01-01",
			[]AssetSpec{{Geometry: geo.Rect(2, 2, 3, 3), Href: "https://x/b.fgb"}, {Geometry: geo.Rect(1, 1, 2, 2), Href: "https://x/c.fgb"}}, MediaTypeFlatGeobuf),
		mustSynthesize(t, day2, "daily_2024-01-02",
			[]AssetSpec{{Geometry: geo.Rect(-5, -5, -4, -4), Href: "https://x/d.fgb"}}, MediaTypeFlatGeobuf),
	}
	for i := range items {
		items[i].Links = AttachStyleLink(items[i], "https://styles.example.com/ice.json")
	}

	once, _ := mustMerge(t, items)
	twice, _ := mustMerge(t, once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge(merge(X)) != merge(X):\n once %+v\ntwice %+v", once, twice)
	}
}

func TestMerge_IDsUniqueAndSorted(t *testing.T) {
	items := []Item{
		mustSynthesize(t, testDay.AddDate(0, 0, 2), "daily_2024-01-03", specs("https://x/c.fgb"), MediaTypeFlatGeobuf),
		mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/a.fgb"), MediaTypeFlatGeobuf),
		mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/b.fgb"), MediaTypeFlatGeobuf),
	}
	out, _ := mustMerge(t, items)
	ids := make([]string, len(out))
	for i, it := range out {
		ids[i] = it.ID
	}
	if !reflect.DeepEqual(ids, []string{"daily_2024-01-01", "daily_2024-01-03"}) {
		t.Fatalf("ids=%v", ids)
	}
}

func TestMerge_AssetKeysContiguous(t *testing.T) {
	items := []Item{
		mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/a.fgb", "https://x/b.fgb"), MediaTypeFlatGeobuf),
		mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/c.fgb", "https://x/d.fgb", "https://x/e.fgb"), MediaTypeFlatGeobuf),
	}
	out, _ := mustMerge(t, items)
	got := out[0]
	if len(got.Assets) != 5 {
		t.Fatalf("assets=%d want 5", len(got.Assets))
	}
	for i := 0; i < 5; i++ {
		if _, ok := got.Assets[AssetKey(i)]; !ok {
			t.Fatalf("missing key %s in %v", AssetKey(i), OrderedAssetKeys(got.Assets))
		}
	}
}

// A rerun that appended a duplicate record: links are deduplicated by
// (rel, href) but assets are flattened unconditionally, so the duplicate
// href is counted twice. Documented behavior, not a bug to fix here.
func TestMerge_DuplicateAssetHrefKept(t *testing.T) {
	first := mustSynthesize(t, testDay, "daily_2024-01-01",
		[]AssetSpec{{Geometry: geo.Rect(0, 0, 1, 1), Href: "https://x/a.fgb"}}, MediaTypeFlatGeobuf)
	first.Links = AttachStyleLink(first, "https://styles.example.com/ice.json")
	dup := mustSynthesize(t, testDay, "daily_2024-01-01",
		[]AssetSpec{{Geometry: geo.Rect(0, 0, 1, 1), Href: "https://x/a.fgb"}}, MediaTypeFlatGeobuf)
	dup.Links = AttachStyleLink(dup, "https://styles.example.com/ice.json")

	out, diag := mustMerge(t, []Item{first, dup})
	got := out[0]
	if len(got.Assets) != 2 {
		t.Fatalf("assets=%d want 2 (duplicate href is not deduplicated)", len(got.Assets))
	}
	if n := countStyle(got.Links); n != 1 {
		t.Fatalf("style links=%d want 1", n)
	}
	if diag.LinksDeduped != 1 {
		t.Fatalf("diag=%+v want one deduped link", diag)
	}
}

func TestMerge_LinkDedupKeepsFirst(t *testing.T) {
	a := mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/a.fgb"), MediaTypeFlatGeobuf)
	a.Links = []Link{
		{Rel: "self", Href: "https://x/items/1", Type: "application/json"},
		{Rel: RelStyle, Href: "https://styles.example.com/ice.json", AssetKeys: []string{"asset_0"}},
	}
	b := mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/b.fgb"), MediaTypeFlatGeobuf)
	b.Links = []Link{
		{Rel: "self", Href: "https://x/items/1", Type: "text/html"},
		{Rel: RelStyle, Href: "https://styles.example.com/ice.json", AssetKeys: []string{"asset_0", "asset_1"}},
	}

	out, _ := mustMerge(t, []Item{a, b})
	links := out[0].Links
	if len(links) != 2 {
		t.Fatalf("links=%+v want 2", links)
	}
	// First occurrence wins, including its payload fields.
	if links[0].Type != "application/json" {
		t.Fatalf("dedup kept wrong occurrence: %+v", links[0])
	}
	seen := map[[2]string]bool{}
	for _, l := range links {
		k := [2]string{l.Rel, l.Href}
		if seen[k] {
			t.Fatalf("duplicate (rel, href) survived: %+v", links)
		}
		seen[k] = true
	}
}

func TestMerge_DatetimeConflictFlagged(t *testing.T) {
	a := mustSynthesize(t, testDay, "daily_2024-01-01", specs("https://x/a.fgb"), MediaTypeFlatGeobuf)
	b := mustSynthesize(t, testDay.AddDate(0, 0, 1), "daily_2024-01-01", specs("https://x/b.fgb"), MediaTypeFlatGeobuf)

	out, diag := mustMerge(t, []Item{a, b})
	if !reflect.DeepEqual(diag.DatetimeConflicts, []string{"daily_2024-01-01"}) {
		t.Fatalf("conflicts=%v", diag.DatetimeConflicts)
	}
	// First member's datetime wins regardless.
	if !out[0].Datetime.Equal(testDay) {
		t.Fatalf("datetime=%v want %v", out[0].Datetime, testDay)
	}
}

func TestMerge_BBoxAlwaysDerivedFromGeometry(t *testing.T) {
	a := mustSynthesize(t, testDay, "daily_2024-01-01", []AssetSpec{{Geometry: geo.Rect(0, 0, 1, 1), Href: "https://x/a.fgb"}}, MediaTypeFlatGeobuf)
	a.BBox = [4]float64{99, 99, 99, 99} // stale bbox must be recomputed
	out, _ := mustMerge(t, []Item{a})
	if out[0].BBox != geo.BBox(out[0].Geometry) {
		t.Fatalf("bbox=%v geometry bounds=%v", out[0].BBox, geo.BBox(out[0].Geometry))
	}
	if out[0].BBox != [4]float64{0, 0, 1, 1} {
		t.Fatalf("bbox=%v want [0 0 1 1]", out[0].BBox)
	}
}
