// Package batch loads address lists for bulk enrichment and fans them
// out across a worker pool.
package batch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
)

// LoadRequests reads enrichment requests from a CSV or XLSX file. The
// first row must be a header naming at least an address column; city,
// county, state, and zip columns are optional. Rows without an address
// are skipped.
func LoadRequests(path string) ([]model.EnrichmentRequest, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: open %s", path)
		}
		defer f.Close()
		return fromRows(readCSV(f))
	case ".xlsx":
		return fromRows(readXLSX(path))
	default:
		return nil, eris.Errorf("batch: unsupported file type %s", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "batch: read csv row")
		}
		rows = append(rows, record)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("batch: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// Column aliases accepted in the header row, normalized to lowercase
// with separators removed.
var columnAliases = map[string]string{
	"address":       "address",
	"street":        "address",
	"streetaddress": "address",
	"city":          "city",
	"locality":      "city",
	"county":        "county",
	"state":         "state",
	"st":            "state",
	"zip":           "zip",
	"zipcode":       "zip",
	"postalcode":    "zip",
}

func fromRows(rows [][]string, err error) ([]model.EnrichmentRequest, error) {
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("batch: file is empty")
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(name)))
		if canonical, ok := columnAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	if _, ok := cols["address"]; !ok {
		return nil, eris.New("batch: header has no address column")
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var reqs []model.EnrichmentRequest
	for n, row := range rows[1:] {
		addr := cell(row, "address")
		if addr == "" {
			zap.L().Warn("skipping row without address", zap.Int("row", n+2))
			continue
		}
		reqs = append(reqs, model.EnrichmentRequest{
			Address:    addr,
			CityHint:   cell(row, "city"),
			CountyHint: cell(row, "county"),
			StateHint:  cell(row, "state"),
			ZipHint:    cell(row, "zip"),
		})
	}
	return reqs, nil
}
