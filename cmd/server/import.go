package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"proptrack/server/config"
	"proptrack/server/internal/importer"
)

var errImportRejected = errors.New("import rejected")

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import listings from a CSV file",
		Long:  "Validate, geocode and store every row of a CSV file. Nothing is stored unless every row is valid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			logger.SetOutput(cmd.ErrOrStderr())

			file, err := os.Open(args[0])
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("%w: %s", importer.ErrNoFile, args[0])
				}
				return err
			}
			defer file.Close()

			db, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			geocoder, closeCache, err := newGeocoder(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeCache()

			imp := importer.NewImporter(geocoder, db, logger, cfg.Geocoding.Concurrency)
			result, err := imp.Import(cmd.Context(), file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Rejected() {
				for _, verr := range result.Errors {
					fmt.Fprintf(out, "row %d: %s\n", verr.Row, strings.Join(verr.Errors, "; "))
				}
				return fmt.Errorf("%w: %d of the rows failed", errImportRejected, len(result.Errors))
			}

			fmt.Fprintf(out, "Successfully imported %d properties\n", len(result.Properties))
			return nil
		},
	}
}
