package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/clv-cli/internal/btyd"
	"github.com/sells-group/clv-cli/internal/clv"
	"github.com/sells-group/clv-cli/internal/store"
	"github.com/sells-group/clv-cli/internal/txn"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the full CLV pipeline on a transaction file",
	Long:  "Cleans the transaction log, fits both models, writes the full prediction CSV, and prints the top customers by predicted lifetime value.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = cfg.Input.Path
		}
		if input == "" {
			return eris.New("predict: no input file (use --input or set input.path)")
		}

		// Flags override config when set explicitly.
		months := cfg.Horizon.Months
		if cmd.Flags().Changed("horizon-months") {
			months, _ = cmd.Flags().GetFloat64("horizon-months")
		}
		topN := cfg.Output.TopN
		if cmd.Flags().Changed("top") {
			topN, _ = cmd.Flags().GetInt("top")
		}
		output := cfg.Output.Path
		if cmd.Flags().Changed("output") {
			output, _ = cmd.Flags().GetString("output")
		}
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")

		if format != "table" && format != "csv" {
			return eris.Errorf("predict: unknown output format %q", format)
		}

		rows, err := loadRows(input)
		if err != nil {
			return err
		}

		params := clv.Params{
			HorizonMonths: months,
			BGNBD: btyd.Options{
				Penalizer:     cfg.BGNBD.Penalizer,
				MaxIterations: cfg.BGNBD.MaxIterations,
			},
			GammaGamma: btyd.Options{
				Penalizer:     cfg.GammaGamma.Penalizer,
				MaxIterations: cfg.GammaGamma.MaxIterations,
			},
		}

		result, err := clv.Run(rows, params)
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		if err := clv.ExportCSV(result.Records, output); err != nil {
			return err
		}
		zap.L().Info("predict: exported predictions",
			zap.String("path", output),
			zap.Int("customers", len(result.Records)),
		)

		top := clv.Top(result.Records, topN)
		switch format {
		case "csv":
			if err := clv.WriteCSV(os.Stdout, top); err != nil {
				return err
			}
		default:
			formatRunSummary(os.Stdout, result, params)
			formatPredictions(os.Stdout, top)
		}

		if save {
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN())
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			run := store.Run{
				Cutoff:      result.Cutoff,
				HorizonDays: params.HorizonDays(),
			}
			if err := st.SaveRun(ctx, run, result.Records); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved run with %d predictions.\n", len(result.Records))
		}

		return nil
	},
}

func init() {
	predictCmd.Flags().String("input", "", "transaction file (CSV or XLSX)")
	predictCmd.Flags().Float64("horizon-months", 6, "prediction horizon in months")
	predictCmd.Flags().Int("top", 10, "number of top customers to display")
	predictCmd.Flags().String("output", "clv_predictions.csv", "path for the full prediction CSV")
	predictCmd.Flags().String("format", "table", "display format for top customers (table, csv)")
	predictCmd.Flags().Bool("save", false, "persist the run and predictions to the store")

	rootCmd.AddCommand(predictCmd)
}

// loadRows reads raw rows from the configured transaction file.
func loadRows(path string) ([][]string, error) {
	var delim rune
	if cfg.Input.Delimiter != "" {
		delim = rune(cfg.Input.Delimiter[0])
	}
	return txn.Load(path, txn.LoadOptions{
		Format:    cfg.Input.Format,
		SheetName: cfg.Input.Sheet,
		Delimiter: delim,
	})
}

// formatRunSummary writes cleaning stats and fitted parameters to w.
func formatRunSummary(out io.Writer, result *clv.Result, params clv.Params) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows read:\t%d\n", result.Stats.RowsRead)
	_, _ = fmt.Fprintf(w, "  Missing customer:\t%d\n", result.Stats.MissingCustomer)
	_, _ = fmt.Fprintf(w, "  Cancelled:\t%d\n", result.Stats.Cancelled)
	_, _ = fmt.Fprintf(w, "  Non-positive:\t%d\n", result.Stats.NonPositive)
	_, _ = fmt.Fprintf(w, "  Bad timestamp:\t%d\n", result.Stats.BadTimestamp)
	_, _ = fmt.Fprintf(w, "Rows kept:\t%d\n", result.Stats.Remaining)
	_, _ = fmt.Fprintf(w, "Cutoff:\t%s\n", result.Cutoff.Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintf(w, "Horizon:\t%.1f days\n", params.HorizonDays())
	_, _ = fmt.Fprintf(w, "BG/NBD:\tr=%.4f alpha=%.4f a=%.4f b=%.4f (n=%d)\n",
		result.Purchase.R, result.Purchase.Alpha, result.Purchase.A, result.Purchase.B, result.Purchase.Customers)
	_, _ = fmt.Fprintf(w, "Gamma-Gamma:\tp=%.4f q=%.4f v=%.4f (n=%d)\n",
		result.Monetary.P, result.Monetary.Q, result.Monetary.V, result.Monetary.Customers)
	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
}

// formatPredictions writes a tabular list of prediction records to w.
func formatPredictions(out io.Writer, records []clv.PredictionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CUSTOMER\tFREQ\tRECENCY\tT\tMONETARY\tPRED_PURCHASES\tPRED_VALUE\tPRED_CLV")
	_, _ = fmt.Fprintln(w, "--------\t----\t-------\t-\t--------\t--------------\t----------\t--------")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%.2f\t%.4f\t%.2f\t%.2f\n",
			r.CustomerID,
			r.Frequency,
			r.Recency,
			r.Age,
			r.MonetaryValue,
			r.PredictedPurchases,
			r.PredictedMonetaryValue,
			r.PredictedCLV,
		)
	}
	_ = w.Flush()
}
