package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/geo"
	"github.com/sells-group/valuation-cli/internal/store"
)

var (
	countiesDest   string
	countiesNoLoad bool
)

var countiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "Download the TIGER county shapefile for offline lookups",
	Long:  "Downloads and extracts the Census TIGER county shapefile, and loads the county FIPS table into Postgres when that driver is configured.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shpPath, err := geo.SyncCounties(ctx, nil, countiesDest)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "County shapefile extracted to %s\n", shpPath)
		fmt.Fprintf(os.Stderr, "Set geo.county_shapefile (VALUATION_GEO_COUNTY_SHAPEFILE) to enable offline county lookups.\n")

		if countiesNoLoad || cfg.Store.Driver != "postgres" {
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.New("counties: postgres store expected")
		}
		n, err := geo.LoadCountyTable(ctx, pg.Pool(), shpPath)
		if err != nil {
			return err
		}
		zap.L().Info("county reference table loaded", zap.Int64("records", n))
		return nil
	},
}

func init() {
	countiesCmd.Flags().StringVar(&countiesDest, "dest", "tiger", "directory for the downloaded shapefile")
	countiesCmd.Flags().BoolVar(&countiesNoLoad, "no-load", false, "skip loading the county table into Postgres")
	rootCmd.AddCommand(countiesCmd)
}
