package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"proptrack/server/config"
	"proptrack/server/internal/importer"
	"proptrack/server/internal/listing"
)

func newExportCmd() *cobra.Command {
	var (
		favorites bool
		statuses  []string
		sortBy    string
		direction string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print all listings as CSV",
		Long:  "Print the stored listings as CSV, optionally filtered and sorted the same way the API does.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if favorites {
				q.Set("favorites", "true")
			}
			for _, s := range statuses {
				q.Add("status", s)
			}
			if sortBy != "" {
				q.Set("sort", sortBy)
				q.Set("direction", direction)
			}
			state, err := listing.ParseQuery(q)
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			logger.SetOutput(cmd.ErrOrStderr())

			db, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			properties, err := db.ListProperties(cmd.Context())
			if err != nil {
				return err
			}
			return importer.WriteExport(cmd.OutOrStdout(), listing.Apply(properties, state))
		},
	}

	cmd.Flags().BoolVar(&favorites, "favorites", false, "only export favorites")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only export listings with these statuses")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by price_per_month, status or rooms")
	cmd.Flags().StringVar(&direction, "direction", "asc", "sort direction (asc|desc)")

	return cmd
}
