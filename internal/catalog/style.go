package catalog

// AttachStyleLink returns the links sequence an item should carry for the
// given style endpoint. An empty styleURL is a no-op and returns the item's
// links untouched. Otherwise any existing style link is removed and exactly
// one is appended last, keyed to the item's current asset labels, so
// re-applying the same URL is idempotent.
func AttachStyleLink(it Item, styleURL string) []Link {
	if styleURL == "" {
		return it.Links
	}
	out := make([]Link, 0, len(it.Links)+1)
	for _, l := range it.Links {
		if l.Rel == RelStyle {
			continue
		}
		out = append(out, l)
	}
	out = append(out, Link{
		Rel:       RelStyle,
		Href:      styleURL,
		Type:      MediaTypeVectorStyle,
		AssetKeys: OrderedAssetKeys(it.Assets),
	})
	return out
}
