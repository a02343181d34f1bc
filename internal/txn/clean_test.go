package txn

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header() []string {
	return []string{"InvoiceNo", "StockCode", "Description", "Quantity", "InvoiceDate", "UnitPrice", "CustomerID", "Country"}
}

func row(invoice, qty, date, price, customer string) []string {
	return []string{invoice, "85123A", "WHITE HANGING HEART", qty, date, price, customer, "United Kingdom"}
}

func TestCleanValidRows(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		row("536365", "6", "2010-12-01 08:26:00", "2.55", "17850"),
		row("536366", "2", "2010-12-01 08:28:00", "1.85", "17850.0"),
	}

	lines, stats, err := Clean(rows)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, 2, stats.RowsRead)
	assert.Equal(t, 2, stats.Remaining)

	assert.Equal(t, "536365", lines[0].Invoice)
	assert.Equal(t, int64(17850), lines[0].CustomerID)
	assert.Equal(t, int64(6), lines[0].Quantity)
	assert.InDelta(t, 2.55, lines[0].UnitPrice, 1e-9)
	assert.InDelta(t, 15.30, lines[0].TotalPrice, 1e-9)
	assert.Equal(t, time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), lines[0].Timestamp)

	// Fractional rendering of an integral id is coerced.
	assert.Equal(t, int64(17850), lines[1].CustomerID)
}

func TestCleanHeaderNormalization(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		{" Invoice No ", "quantity", "INVOICE_DATE", "Unit Price", "customer id"},
		{"536365", "6", "2010-12-01 08:26:00", "2.55", "17850"},
	}

	lines, _, err := Clean(rows)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(17850), lines[0].CustomerID)
}

func TestCleanDropsMissingCustomer(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		row("536365", "6", "2010-12-01 08:26:00", "2.55", ""),
		row("536366", "6", "2010-12-01 08:26:00", "2.55", "17850.5"),
		row("536367", "6", "2010-12-01 08:26:00", "2.55", "13047"),
	}

	lines, stats, err := Clean(rows)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, 2, stats.MissingCustomer)
}

func TestCleanDropsCancellations(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		// Valid quantity and price, but cancelled.
		row("C536365", "6", "2010-12-01 08:26:00", "2.55", "17850"),
		row("536366", "6", "2010-12-01 08:26:00", "2.55", "17850"),
	}

	lines, stats, err := Clean(rows)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, "536366", lines[0].Invoice)
}

func TestCleanDropsNonPositive(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		qty   string
		price string
	}{
		{"zero quantity", "0", "2.55"},
		{"negative quantity", "-3", "2.55"},
		{"zero price", "6", "0"},
		{"negative price", "6", "-1.25"},
		{"unparsable quantity", "six", "2.55"},
		{"unparsable price", "6", "free"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows := [][]string{
				header(),
				row("536365", tt.qty, "2010-12-01 08:26:00", tt.price, "17850"),
			}
			lines, stats, err := Clean(rows)
			require.NoError(t, err)
			assert.Empty(t, lines)
			assert.Equal(t, 1, stats.NonPositive)
		})
	}
}

func TestCleanDropsBadTimestamp(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		row("536365", "6", "not a date", "2.55", "17850"),
	}

	lines, stats, err := Clean(rows)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 1, stats.BadTimestamp)
}

func TestCleanTimestampLayouts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2010-12-01 08:26:00", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)},
		{"12/1/2010 8:26", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)},
		{"12/1/10 8:26", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)},
		{"2010-12-01", time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			rows := [][]string{
				header(),
				row("536365", "6", tt.raw, "2.55", "17850"),
			}
			lines, _, err := Clean(rows)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.want, lines[0].Timestamp)
		})
	}
}

func TestCleanSchemaError(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		{"InvoiceNo", "Quantity", "InvoiceDate", "UnitPrice"}, // no customer column
		{"536365", "6", "2010-12-01 08:26:00", "2.55"},
	}

	_, _, err := Clean(rows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestCleanEmptyInput(t *testing.T) {
	t.Parallel()
	_, _, err := Clean(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestCleanIdempotent(t *testing.T) {
	t.Parallel()
	rows := [][]string{
		header(),
		row("C536365", "6", "2010-12-01 08:26:00", "2.55", "17850"),
		row("536366", "0", "2010-12-01 08:26:00", "2.55", "17850"),
		row("536367", "6", "2010-12-01 08:26:00", "2.55", ""),
		row("536368", "6", "2010-12-01 08:26:00", "2.55", "17850"),
		row("536369", "4", "2010-12-02 10:00:00", "1.25", "13047"),
	}

	first, stats, err := Clean(rows)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 3, stats.MissingCustomer+stats.Cancelled+stats.NonPositive)

	// Re-feed the cleaned rows; nothing further is dropped.
	refed := [][]string{{"InvoiceNo", "Quantity", "InvoiceDate", "UnitPrice", "CustomerID"}}
	for _, l := range first {
		refed = append(refed, []string{
			l.Invoice,
			fmt.Sprintf("%d", l.Quantity),
			l.Timestamp.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%g", l.UnitPrice),
			fmt.Sprintf("%d", l.CustomerID),
		})
	}

	second, stats2, err := Clean(refed)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, len(first), stats2.Remaining)
	assert.Zero(t, stats2.MissingCustomer)
	assert.Zero(t, stats2.Cancelled)
	assert.Zero(t, stats2.NonPositive)
}
