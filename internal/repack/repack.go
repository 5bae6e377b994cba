// Package repack turns one remote release folder into the two asset files
// the catalogs reference: a zip of the raw shapefile set and a FlatGeobuf
// conversion, plus the folder's bounding geometry.
package repack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/polarview/icestac/internal/geo"
)

// Result describes one successfully repackaged folder.
type Result struct {
	Folder      string
	Date        time.Time
	Geometry    orb.Polygon
	ZipPath     string
	FGBPath     string
	ZipChecksum string
}

// ConvertFunc converts a shapefile to FlatGeobuf. The default shells out to
// ogr2ogr; tests inject their own.
type ConvertFunc func(ctx context.Context, shpPath, fgbPath string) error

// Packer downloads and repackages release folders, one at a time.
type Packer struct {
	BaseURL string // yearly listing base, folder paths appended
	ZipDir  string
	FGBDir  string
	HTTP    *http.Client
	Log     *slog.Logger
	Convert ConvertFunc
}

// The sidecar files a shapefile release ships with. Missing sidecars are
// tolerated; a folder counts as retrieved when at least one file came down.
var sidecarExts = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

func (p *Packer) httpClient() *http.Client {
	if p.HTTP != nil {
		return p.HTTP
	}
	return http.DefaultClient
}

func (p *Packer) convert(ctx context.Context, shpPath, fgbPath string) error {
	if p.Convert != nil {
		return p.Convert(ctx, shpPath, fgbPath)
	}
	return OGR2OGR(ctx, shpPath, fgbPath)
}

// Process downloads the folder's files into a temp dir, zips them, converts
// the shapefile to FlatGeobuf and reads the bounding rectangle.
func (p *Packer) Process(ctx context.Context, folder string, date time.Time) (Result, error) {
	tmp, err := os.MkdirTemp("", "icestac-"+folder+"-")
	if err != nil {
		return Result{}, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	got := 0
	for _, ext := range sidecarExts {
		url := fmt.Sprintf("%s%s/%s%s", p.BaseURL, folder, folder, ext)
		dst := filepath.Join(tmp, folder+ext)
		ok, err := p.download(ctx, url, dst)
		if err != nil {
			return Result{}, fmt.Errorf("download %s: %w", url, err)
		}
		if ok {
			got++
		} else if p.Log != nil {
			p.Log.Debug("sidecar missing", "url", url)
		}
	}
	if got == 0 {
		return Result{}, fmt.Errorf("folder %s: no files retrieved", folder)
	}

	shpPath := filepath.Join(tmp, folder+".shp")
	if _, err := os.Stat(shpPath); err != nil {
		return Result{}, fmt.Errorf("folder %s: no .shp file", folder)
	}

	if err := os.MkdirAll(p.ZipDir, 0o755); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(p.FGBDir, 0o755); err != nil {
		return Result{}, err
	}

	zipPath := filepath.Join(p.ZipDir, folder+".zip")
	sum, err := zipDir(tmp, zipPath)
	if err != nil {
		return Result{}, fmt.Errorf("zip %s: %w", folder, err)
	}

	fgbPath := filepath.Join(p.FGBDir, folder+".fgb")
	if err := p.convert(ctx, shpPath, fgbPath); err != nil {
		return Result{}, fmt.Errorf("convert %s: %w", folder, err)
	}

	poly, err := shapefileEnvelope(shpPath)
	if err != nil {
		return Result{}, fmt.Errorf("folder %s: %w", folder, err)
	}

	return Result{
		Folder:      folder,
		Date:        date,
		Geometry:    poly,
		ZipPath:     zipPath,
		FGBPath:     fgbPath,
		ZipChecksum: sum,
	}, nil
}

// download fetches url into dst. A 404 is not an error; the folder may
// legitimately lack some sidecars.
func (p *Packer) download(ctx context.Context, url, dst string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.httpClient().Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}

// shapefileEnvelope reads the shapefile header's bounding box.
func shapefileEnvelope(path string) (orb.Polygon, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()
	box := r.BBox()
	return geo.Rect(box.MinX, box.MinY, box.MaxX, box.MaxY), nil
}
