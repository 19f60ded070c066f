package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
)

var (
	runAddress string
	runCity    string
	runCounty  string
	runState   string
	runZip     string
	runNoStore bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run enrichment for a single address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := initPipeline()
		if err != nil {
			return err
		}

		req := model.EnrichmentRequest{
			Address:    runAddress,
			CityHint:   runCity,
			CountyHint: runCounty,
			StateHint:  runState,
			ZipHint:    runZip,
		}

		if !runNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}

			run, err := st.CreateRun(ctx, req)
			if err != nil {
				return eris.Wrap(err, "create run")
			}

			bundle, runErr := p.Run(ctx, req)
			if runErr != nil {
				_ = st.FailRun(ctx, run.ID, runErr.Error())
				return eris.Wrap(runErr, "pipeline run")
			}
			if err := st.CompleteRun(ctx, run.ID, bundle); err != nil {
				zap.L().Warn("persist run failed", zap.String("run_id", run.ID), zap.Error(err))
			}
			return printBundle(bundle)
		}

		bundle, err := p.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return printBundle(bundle)
	},
}

func printBundle(bundle *model.EnrichmentBundle) error {
	zap.L().Info("enrichment complete",
		zap.String("address", bundle.Request.Address),
		zap.Int("quality_score", bundle.Consensus.QualityScore),
		zap.Int("comparables", len(bundle.Comparables)),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

func init() {
	runCmd.Flags().StringVar(&runAddress, "address", "", "street address (required)")
	runCmd.Flags().StringVar(&runCity, "city", "", "city hint")
	runCmd.Flags().StringVar(&runCounty, "county", "", "county hint")
	runCmd.Flags().StringVar(&runState, "state", "", "state hint")
	runCmd.Flags().StringVar(&runZip, "zip", "", "zip hint")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip persisting the run")
	_ = runCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(runCmd)
}
