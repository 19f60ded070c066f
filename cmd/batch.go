package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/batch"
	"github.com/sells-group/valuation-cli/internal/store"
)

var (
	batchInput   string
	batchWorkers int
	batchNoStore bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich every address in a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reqs, err := batch.LoadRequests(batchInput)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			return eris.Errorf("no addresses found in %s", batchInput)
		}
		zap.L().Info("batch loaded", zap.String("input", batchInput), zap.Int("addresses", len(reqs)))

		p, err := initPipeline()
		if err != nil {
			return err
		}

		var st store.Store
		if !batchNoStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		results := batch.Run(ctx, p, st, reqs, batchWorkers)

		var failed int
		for _, res := range results {
			if res.Err != nil {
				failed++
			}
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(results)),
			zap.Int("succeeded", len(results)-failed),
			zap.Int("failed", failed),
		)
		fmt.Fprintf(os.Stderr, "Enriched %d of %d addresses.\n", len(results)-failed, len(results))
		if failed > 0 {
			return eris.Errorf("batch finished with %d failures", failed)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "CSV or XLSX file of addresses (required)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "concurrent enrichment workers")
	batchCmd.Flags().BoolVar(&batchNoStore, "no-store", false, "skip persisting runs")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
