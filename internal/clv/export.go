package clv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// exportColumns defines the ordered prediction CSV output columns.
var exportColumns = []string{
	"customer_id",
	"frequency",
	"recency",
	"T",
	"monetary_value",
	"predicted_purchases",
	"predicted_monetary_value",
	"predicted_clv",
}

// ExportCSV writes prediction records as a CSV file keyed by customer id.
func ExportCSV(records []PredictionRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrapf(err, "clv export: create %s", outputPath)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "clv export: close %s", outputPath)
}

// WriteCSV writes prediction records to w in export column order.
func WriteCSV(w io.Writer, records []PredictionRecord) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(exportColumns); err != nil {
		return eris.Wrap(err, "clv export: write header")
	}

	for _, r := range records {
		row := []string{
			fmt.Sprintf("%d", r.CustomerID),
			fmt.Sprintf("%g", r.Frequency),
			fmt.Sprintf("%g", r.Recency),
			fmt.Sprintf("%g", r.Age),
			fmt.Sprintf("%.2f", r.MonetaryValue),
			fmt.Sprintf("%.4f", r.PredictedPurchases),
			fmt.Sprintf("%.2f", r.PredictedMonetaryValue),
			fmt.Sprintf("%.2f", r.PredictedCLV),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "clv export: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "clv export: flush")
}
