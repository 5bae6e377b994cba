// Package discover finds dated release folders on the remote archive's
// directory-listing page, or in a pre-fetched JSON list.
package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Folder is one dated release folder on the archive.
type Folder struct {
	Name string
	Date time.Time
}

// Client scrapes the yearly listing page.
type Client struct {
	ListingURL string
	HTTP       *http.Client
	Log        *slog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// List fetches the listing page and returns every linked folder whose name
// carries a valid YYYYMMDD prefix, in page order without duplicates.
func (c *Client) List(ctx context.Context) ([]Folder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ListingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", c.ListingURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing %s: status %d", c.ListingURL, resp.StatusCode)
	}

	folders, skipped, err := parseListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", c.ListingURL, err)
	}
	if c.Log != nil {
		c.Log.Debug("listing scraped", "url", c.ListingURL, "folders", len(folders), "skipped", skipped)
	}
	return folders, nil
}

// parseListing walks anchor hrefs in the listing HTML. Returns the folders
// found and how many anchors were skipped for not looking like a release.
func parseListing(r io.Reader) ([]Folder, int, error) {
	var out []Folder
	seen := make(map[string]struct{})
	skipped := 0

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return out, skipped, nil
			}
			return nil, 0, z.Err()
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key != "href" {
					continue
				}
				name := strings.Trim(strings.TrimSpace(attr.Val), "/")
				if name == "" || strings.Contains(name, "/") || strings.Contains(name, "?") {
					skipped++
					continue
				}
				date, ok := FolderDate(name)
				if !ok {
					skipped++
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				out = append(out, Folder{Name: name, Date: date})
			}
		}
	}
}

// FolderDate parses the YYYYMMDD prefix of a release folder name.
func FolderDate(name string) (time.Time, bool) {
	if len(name) < 8 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", name[:8])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// FromJSONFile reads the {"list": [...]} input the pipeline historically
// accepted instead of scraping. Names without a valid date prefix are
// dropped.
func FromJSONFile(path string) ([]Folder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read folder list: %w", err)
	}
	var doc struct {
		List []string `json:"list"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse folder list %s: %w", path, err)
	}
	out := make([]Folder, 0, len(doc.List))
	seen := make(map[string]struct{})
	for _, name := range doc.List {
		date, ok := FolderDate(name)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, Folder{Name: name, Date: date})
	}
	return out, nil
}
