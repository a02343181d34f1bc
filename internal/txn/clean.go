package txn

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSchema indicates a required column is absent after header normalization.
var ErrSchema = eris.New("txn: required column missing")

// ErrEmpty indicates cleaning removed every row.
var ErrEmpty = eris.New("txn: no transactions survived cleaning")

// cancelMarker flags cancelled invoices; invoice numbers are otherwise
// numeric in the source data.
const cancelMarker = "C"

// Canonical column names, mapped from normalized header cells.
const (
	colInvoice   = "invoice"
	colCustomer  = "customer_id"
	colTimestamp = "invoice_date"
	colQuantity  = "quantity"
	colUnitPrice = "unit_price"
)

var headerAliases = map[string]string{
	"invoiceno":   colInvoice,
	"invoiceid":   colInvoice,
	"invoice":     colInvoice,
	"customerid":  colCustomer,
	"customer":    colCustomer,
	"invoicedate": colTimestamp,
	"date":        colTimestamp,
	"timestamp":   colTimestamp,
	"quantity":    colQuantity,
	"qty":         colQuantity,
	"unitprice":   colUnitPrice,
	"price":       colUnitPrice,
}

// timestampLayouts covers ISO datetimes plus the short date formats XLSX
// number formats render for the retail dataset.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"01-02-06 15:04",
	"1/2/2006",
}

// Stats counts rows read and dropped at each cleaning step.
type Stats struct {
	RowsRead        int
	MissingCustomer int
	Cancelled       int
	NonPositive     int
	BadTimestamp    int
	Remaining       int
}

// Clean validates raw rows (header first) into Lines. Filtering runs in a
// fixed order: missing customer id, cancellation marker, non-positive
// quantity/price, unparsable timestamp. TotalPrice is computed only for
// surviving rows. Returns ErrSchema when a required column cannot be mapped.
func Clean(rows [][]string) ([]Line, Stats, error) {
	var stats Stats
	if len(rows) == 0 {
		return nil, stats, eris.Wrap(ErrSchema, "txn: input has no header row")
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, stats, err
	}

	lines := make([]Line, 0, len(rows)-1)
	for _, row := range rows[1:] {
		stats.RowsRead++

		id, ok := parseCustomerID(field(row, cols[colCustomer]))
		if !ok {
			stats.MissingCustomer++
			continue
		}

		invoice := field(row, cols[colInvoice])
		if strings.Contains(invoice, cancelMarker) {
			stats.Cancelled++
			continue
		}

		qty, qok := parseQuantity(field(row, cols[colQuantity]))
		price, pok := parsePrice(field(row, cols[colUnitPrice]))
		if !qok || !pok || qty <= 0 || price <= 0 {
			stats.NonPositive++
			continue
		}

		ts, ok := parseTimestamp(field(row, cols[colTimestamp]))
		if !ok {
			stats.BadTimestamp++
			continue
		}

		lines = append(lines, Line{
			Invoice:    invoice,
			CustomerID: id,
			Timestamp:  ts,
			Quantity:   qty,
			UnitPrice:  price,
			TotalPrice: float64(qty) * price,
		})
	}
	stats.Remaining = len(lines)

	zap.L().Info("txn: cleaning complete",
		zap.Int("rows_read", stats.RowsRead),
		zap.Int("missing_customer", stats.MissingCustomer),
		zap.Int("cancelled", stats.Cancelled),
		zap.Int("non_positive", stats.NonPositive),
		zap.Int("bad_timestamp", stats.BadTimestamp),
		zap.Int("remaining", stats.Remaining),
	)

	return lines, stats, nil
}

// mapHeader maps normalized header cells to column indexes for the five
// required columns.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, 5)
	for i, cell := range header {
		key := normalizeHeader(cell)
		if canonical, ok := headerAliases[key]; ok {
			if _, seen := cols[canonical]; !seen {
				cols[canonical] = i
			}
		}
	}

	for _, required := range []string{colInvoice, colCustomer, colTimestamp, colQuantity, colUnitPrice} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Wrapf(ErrSchema, "txn: column %s not found in header", required)
		}
	}
	return cols, nil
}

func normalizeHeader(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseCustomerID coerces an id to integer identity. Float renderings with a
// zero fractional part (e.g. "17850.0") are accepted; anything fractional,
// empty, or non-numeric is not.
func parseCustomerID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func parseQuantity(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
