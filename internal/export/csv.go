// Package export writes snapshot sections as flat CSV tables for
// spreadsheet and BI tools. Column names match the snapshot JSON keys.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"marketsnapshot/internal/snapshot"
	"marketsnapshot/internal/store"
)

// QuoteColumns is the header of every quote section table.
var QuoteColumns = []string{"symbol", "name", "as_of_date", "close", "prev_close", "pct_change", "net_change", "source", "error"}

// FlowColumns is the header of the flow table.
var FlowColumns = []string{"date", "fii_value", "dii_value", "note"}

// Exporter writes CSV tables for each snapshot.
type Exporter struct {
	fs  afero.Fs
	dir string
}

// New creates an exporter writing below dir.
func New(fsys afero.Fs, dir string) *Exporter {
	return &Exporter{fs: fsys, dir: dir}
}

// Write exports snap into csv_<day>/ and csv_latest/ and returns the
// directories written. Empty quote sections and the news section produce
// no table.
func (e *Exporter) Write(snap snapshot.Snapshot, day time.Time) ([]string, error) {
	tables := make(map[string][]byte)
	for _, sec := range snap.Sections {
		var (
			raw []byte
			err error
		)
		switch p := sec.Payload.(type) {
		case []snapshot.QuoteRecord:
			if len(p) == 0 {
				continue
			}
			raw, err = encode(QuoteColumns, quoteRows(p))
		case snapshot.FlowRecord:
			raw, err = encode(FlowColumns, [][]string{flowRow(p)})
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("export: section %s: %w", sec.Name, err)
		}
		tables[sec.Name] = raw
	}

	dirs := []string{
		filepath.Join(e.dir, "csv_"+day.Format(snapshot.DateLayout)),
		filepath.Join(e.dir, "csv_latest"),
	}
	for _, dir := range dirs {
		if err := e.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("export: create %s: %w", dir, err)
		}
		for _, sec := range snap.Sections {
			raw, ok := tables[sec.Name]
			if !ok {
				continue
			}
			if err := store.WriteFileAtomic(e.fs, filepath.Join(dir, sec.Name+".csv"), raw); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		}
	}
	return dirs, nil
}

func encode(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func quoteRows(recs []snapshot.QuoteRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.Symbol,
			r.Name,
			str(r.AsOfDate),
			num(r.Close),
			num(r.PrevClose),
			num(r.PctChange),
			num(r.NetChange),
			r.Source,
			r.Error,
		}
	}
	return rows
}

func flowRow(f snapshot.FlowRecord) []string {
	row := []string{f.Date, "", "", f.Note}
	if f.FIIValue.Valid {
		row[1] = f.FIIValue.Decimal.String()
	}
	if f.DIIValue.Valid {
		row[2] = f.DIIValue.Decimal.String()
	}
	return row
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
