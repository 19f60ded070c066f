package geo

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	shp "github.com/jonas-p/go-shp"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zipShapefile bundles the sidecar files of a shapefile into a ZIP.
func zipShapefile(t *testing.T, shpPath string) []byte {
	t.Helper()
	dir := filepath.Dir(shpPath)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	tmp := filepath.Join(t.TempDir(), "counties.zip")
	f, err := os.Create(tmp)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w, err := zw.Create(e.Name())
		require.NoError(t, err)
		src, err := os.Open(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		_, err = io.Copy(w, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(tmp)
	require.NoError(t, err)
	return data
}

func TestSyncCounties(t *testing.T) {
	archive := zipShapefile(t, writeCountyShapefile(t))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	dest := t.TempDir()
	shpPath, err := SyncCounties(context.Background(), srv.Client(), dest, WithCountyURL(srv.URL))
	require.NoError(t, err)
	assert.FileExists(t, shpPath)

	// The extracted shapefile loads into the point-in-polygon locator.
	loc, err := LoadCountyShapefile(shpPath)
	require.NoError(t, err)
	require.NotNil(t, loc.Locate(0.5, 0.5))
}

func TestSyncCountiesDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := SyncCounties(context.Background(), srv.Client(), t.TempDir(), WithCountyURL(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestLoadCountyTable(t *testing.T) {
	shpPath := writeCountyShapefile(t)

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS reference`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS reference\.counties`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_reference_counties"}, []string{"fips", "name", "state_fips"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "reference"\."counties"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := LoadCountyTable(context.Background(), mock, shpPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// writeBareShapefile writes a polygon shapefile lacking the TIGER
// attribute columns.
func writeBareShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("LABEL", 16)}))
	ring := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	idx := w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{ring})))
	require.NoError(t, w.WriteAttribute(int(idx), 0, "bare"))
	w.Close()
	fixShapefileDBF(t, path)
}

func TestLoadCountyTableMissingFields(t *testing.T) {
	// A shapefile without the TIGER attribute columns is rejected.
	path := filepath.Join(t.TempDir(), "bare.shp")
	writeBareShapefile(t, path)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = LoadCountyTable(context.Background(), mock, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required shapefile fields")
}
