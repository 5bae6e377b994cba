package repack

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// zipDir packages every regular file in dir (sorted by name, so archives are
// reproducible for identical inputs) into a zip at dst and returns the
// archive's xxhash64 fingerprint.
func zipDir(dir, dst string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	digest := xxhash.New()
	zw := zip.NewWriter(io.MultiWriter(out, digest))

	for _, name := range names {
		src, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			zw.Close()
			out.Close()
			return "", err
		}
		w, err := zw.Create(name)
		if err == nil {
			_, err = io.Copy(w, src)
		}
		src.Close()
		if err != nil {
			zw.Close()
			out.Close()
			return "", fmt.Errorf("archive %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// OGR2OGR converts a shapefile to FlatGeobuf through the GDAL CLI driver.
func OGR2OGR(ctx context.Context, shpPath, fgbPath string) error {
	cmd := exec.CommandContext(ctx, "ogr2ogr", "-f", "FlatGeobuf", fgbPath, shpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ogr2ogr %s: %w: %s", shpPath, err, bytes.TrimSpace(out))
	}
	return nil
}
