package main

import (
	"github.com/spf13/cobra"

	"proptrack/server/internal/importer"
)

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print the CSV import template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return importer.WriteTemplate(cmd.OutOrStdout())
		},
	}
}
