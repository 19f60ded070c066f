package geo

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/db"
)

const countyShapefileURL = "https://www2.census.gov/geo/tiger/TIGER2024/COUNTY/tl_2024_us_county.zip"

// SyncOption configures a county shapefile sync.
type SyncOption func(*syncOpts)

type syncOpts struct {
	url string
}

// WithCountyURL overrides the TIGER download URL (for testing or mirrors).
func WithCountyURL(u string) SyncOption {
	return func(o *syncOpts) {
		o.url = u
	}
}

// SyncCounties downloads the TIGER county shapefile and extracts it into
// destDir. It returns the path of the extracted .shp, suitable for
// LoadCountyShapefile and for the geo.county_shapefile config key.
func SyncCounties(ctx context.Context, httpClient *http.Client, destDir string, opts ...SyncOption) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	o := syncOpts{url: countyShapefileURL}
	for _, opt := range opts {
		opt(&o)
	}

	log := zap.L().With(zap.String("component", "geo.loader"))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "geo: create county dir")
	}

	zipPath := filepath.Join(destDir, "tl_2024_us_county.zip")
	log.Info("downloading county shapefile", zap.String("url", o.url))
	if err := downloadFile(ctx, httpClient, o.url, zipPath); err != nil {
		return "", eris.Wrap(err, "geo: download county shapefile")
	}

	if err := extractZIP(zipPath, destDir); err != nil {
		return "", eris.Wrap(err, "geo: extract county ZIP")
	}

	shpPath, err := findFileByExt(destDir, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "geo: find .shp file")
	}

	log.Info("county shapefile ready", zap.String("path", shpPath))
	return shpPath, nil
}

// LoadCountyTable reads county attributes from a TIGER shapefile and
// upserts them into reference.counties keyed by FIPS. Geometry stays on
// disk; only the lookup columns go to the database.
func LoadCountyTable(ctx context.Context, pool db.Pool, shpPath string) (int64, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: open county shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	geoidIdx := fieldIndex(reader, "GEOID")
	nameIdx := fieldIndex(reader, "NAME")
	stateIdx := fieldIndex(reader, "STATEFP")
	if geoidIdx < 0 || nameIdx < 0 || stateIdx < 0 {
		return 0, eris.New("geo: required shapefile fields (GEOID, NAME, STATEFP) not found")
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS reference`); err != nil {
		return 0, eris.Wrap(err, "geo: create reference schema")
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reference.counties (
			fips TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			state_fips TEXT NOT NULL
		)`); err != nil {
		return 0, eris.Wrap(err, "geo: create counties table")
	}

	var rows [][]any
	for reader.Next() {
		fips := dbfString(reader.Attribute(geoidIdx))
		if fips == "" {
			continue
		}
		rows = append(rows, []any{
			fips,
			dbfString(reader.Attribute(nameIdx)),
			dbfString(reader.Attribute(stateIdx)),
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "reference.counties",
		Columns:      []string{"fips", "name", "state_fips"},
		ConflictKeys: []string{"fips"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "geo: upsert counties")
	}

	zap.L().Info("county table loaded", zap.Int64("records", n))
	return n, nil
}

// downloadFile downloads a URL to a local file.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}

	return nil
}

// extractZIP extracts a ZIP archive to the destination directory.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		destPath := filepath.Join(destDir, name)

		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}

	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// dbfString strips the NUL padding DBF records carry around short values.
func dbfString(v string) string {
	return strings.TrimSpace(strings.TrimRight(v, "\x00"))
}
