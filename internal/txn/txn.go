// Package txn loads and cleans raw invoice-line transactions.
package txn

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clv-cli/internal/fetcher"
)

// Line is a single validated invoice line. Quantity and UnitPrice are
// strictly positive, CustomerID is present, and the invoice does not carry
// the cancellation marker.
type Line struct {
	Invoice    string
	CustomerID int64
	Timestamp  time.Time
	Quantity   int64
	UnitPrice  float64
	TotalPrice float64 // Quantity * UnitPrice
}

// LoadOptions selects the input file and sheet.
type LoadOptions struct {
	Format     string // "csv", "xlsx", or "" to infer from extension
	SheetIndex int
	SheetName  string
	Delimiter  rune
}

// Load reads raw rows (header first) from a CSV or XLSX transaction file.
func Load(path string, opts LoadOptions) ([][]string, error) {
	format := opts.Format
	if format == "" || format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			format = "xlsx"
		default:
			format = "csv"
		}
	}

	switch format {
	case "xlsx":
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{
			SheetIndex: opts.SheetIndex,
			SheetName:  opts.SheetName,
			TrimSpace:  true,
		})
	case "csv":
		return fetcher.ReadCSV(path, fetcher.CSVOptions{
			Delimiter: opts.Delimiter,
			TrimSpace: true,
		})
	default:
		return nil, eris.Errorf("txn: unsupported input format %q", format)
	}
}
