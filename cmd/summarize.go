package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/clv-cli/internal/rfm"
	"github.com/sells-group/clv-cli/internal/txn"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Clean transactions and print per-customer RFM summaries",
	Long:  "Runs only the cleaning and aggregation stages: no model fitting, no predictions. Useful for inspecting what the models would be trained on.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = cfg.Input.Path
		}
		if input == "" {
			return eris.New("summarize: no input file (use --input or set input.path)")
		}

		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "csv" {
			return eris.Errorf("summarize: unknown output format %q", format)
		}

		rows, err := loadRows(input)
		if err != nil {
			return err
		}

		lines, stats, err := txn.Clean(rows)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return eris.Wrap(txn.ErrEmpty, "summarize: nothing to aggregate")
		}

		cutoff := rfm.Cutoff(lines)
		summaries := rfm.Summarize(lines, cutoff)
		ids := rfm.CustomerIDs(summaries)

		fmt.Fprintf(os.Stderr, "Kept %d of %d rows; %d customers; cutoff %s.\n",
			stats.Remaining, stats.RowsRead, len(summaries), cutoff.Format("2006-01-02 15:04"))

		ordered := make([]rfm.Summary, len(ids))
		for i, id := range ids {
			ordered[i] = summaries[id]
		}

		if format == "csv" {
			return writeSummariesCSV(os.Stdout, ordered)
		}
		formatSummaries(os.Stdout, ordered)
		return nil
	},
}

func init() {
	summarizeCmd.Flags().String("input", "", "transaction file (CSV or XLSX)")
	summarizeCmd.Flags().String("format", "table", "output format (table, csv)")

	rootCmd.AddCommand(summarizeCmd)
}

// formatSummaries writes a tabular list of RFM summaries to w.
func formatSummaries(out io.Writer, summaries []rfm.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CUSTOMER\tFREQ\tRECENCY\tT\tMONETARY")
	_, _ = fmt.Fprintln(w, "--------\t----\t-------\t-\t--------")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%.2f\n",
			s.CustomerID, s.Frequency, s.Recency, s.Age, s.MonetaryValue)
	}
	_ = w.Flush()
}

// writeSummariesCSV writes RFM summaries as CSV rows to w.
func writeSummariesCSV(out io.Writer, summaries []rfm.Summary) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"customer_id", "frequency", "recency", "T", "monetary_value"}); err != nil {
		return eris.Wrap(err, "summarize: write header")
	}
	for _, s := range summaries {
		row := []string{
			fmt.Sprintf("%d", s.CustomerID),
			fmt.Sprintf("%g", s.Frequency),
			fmt.Sprintf("%g", s.Recency),
			fmt.Sprintf("%g", s.Age),
			fmt.Sprintf("%.2f", s.MonetaryValue),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "summarize: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "summarize: flush")
}
