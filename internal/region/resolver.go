package region

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/grid"
)

// Source names where an extent comes from. Exactly one of Region,
// GeoTransform (with RasterSize) or Location must be set.
type Source struct {
	// Region is "xmin,xmax,ymin,ymax".
	Region string
	// GeoTransform is the six GDAL coefficients; RasterSize is "cols,rows".
	GeoTransform string
	RasterSize   string
	// Location is a local path or ftp:// URL of a .shp, .geojson or .json file.
	Location string
}

// Downloader fetches a remote file to a local path.
type Downloader interface {
	DownloadToFile(ctx context.Context, rawURL, path string) (int64, error)
}

// Resolver turns a Source into an Extent. Remote locations are downloaded
// into TempDir (os.TempDir when empty) with Downloader.
type Resolver struct {
	Downloader Downloader
	TempDir    string
}

// Resolve returns the extent named by src. Blank fields count as unset.
func (r *Resolver) Resolve(ctx context.Context, src Source) (grid.Extent, error) {
	src.Region = strings.TrimSpace(src.Region)
	src.GeoTransform = strings.TrimSpace(src.GeoTransform)
	src.RasterSize = strings.TrimSpace(src.RasterSize)
	src.Location = strings.TrimSpace(src.Location)

	set := 0
	for _, s := range []string{src.Region, src.GeoTransform, src.Location} {
		if s != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return grid.Extent{}, ErrNoRegion
	case set > 1:
		return grid.Extent{}, ErrAmbiguousRegion
	}

	log := zap.L().With(zap.String("component", "region"))

	switch {
	case src.Region != "":
		return Parse(src.Region)

	case src.GeoTransform != "":
		gt, err := ParseGeoTransform(src.GeoTransform)
		if err != nil {
			return grid.Extent{}, err
		}
		cols, rows, err := ParseRasterSize(src.RasterSize)
		if err != nil {
			return grid.Extent{}, err
		}
		return FromGeoTransform(gt, cols, rows)
	}

	local := src.Location
	if u, err := url.Parse(src.Location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		if u.Scheme != "ftp" {
			return grid.Extent{}, eris.Wrapf(ErrUnsupportedSource, "scheme %q", u.Scheme)
		}
		downloaded, cleanup, err := r.fetch(ctx, u)
		if err != nil {
			return grid.Extent{}, err
		}
		defer cleanup()
		local = downloaded
	}

	e, err := fromFile(local)
	if err != nil {
		return grid.Extent{}, err
	}
	log.Debug("resolved region", zap.String("location", src.Location), zap.Stringer("extent", e))
	return e, nil
}

func (r *Resolver) fetch(ctx context.Context, u *url.URL) (string, func(), error) {
	if r.Downloader == nil {
		return "", nil, eris.Wrap(ErrUnsupportedSource, "no downloader configured for ftp sources")
	}
	base := path.Base(u.Path)
	if !supportedExt(base) {
		return "", nil, eris.Wrapf(ErrUnsupportedSource, "remote file %q", base)
	}

	dir, err := os.MkdirTemp(r.TempDir, "cellneigh-region-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "region: create temp dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	dst := filepath.Join(dir, base)
	n, err := r.Downloader.DownloadToFile(ctx, u.String(), dst)
	if err != nil {
		cleanup()
		return "", nil, eris.Wrapf(err, "region: download %s", u.Redacted())
	}
	zap.L().Info("downloaded region source", zap.String("url", u.Redacted()), zap.Int64("bytes", n))
	return dst, cleanup, nil
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".shp", ".geojson", ".json":
		return true
	}
	return false
}

func fromFile(p string) (grid.Extent, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".shp":
		return FromShapefile(p)
	case ".geojson", ".json":
		f, err := os.Open(p)
		if err != nil {
			return grid.Extent{}, eris.Wrapf(err, "region: open %s", p)
		}
		defer func() { _ = f.Close() }()
		return FromGeoJSON(f)
	}
	return grid.Extent{}, eris.Wrapf(ErrUnsupportedSource, "file %q", p)
}
