package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Chewie69006/beem-ai/config"
	"github.com/Chewie69006/beem-ai/core/engine/logging"
	"github.com/Chewie69006/beem-ai/pkg/export"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the decision history as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path := cfg.Logging.DecisionPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		var store logging.DecisionStore
		switch cfg.Logging.Backend {
		case "sqlite":
			store, err = logging.NewSQLiteStore(path, cfg.Logging.MaxRecords)
		default:
			store, err = logging.NewJSONLStore(path, cfg.Logging.MaxRecords)
		}
		if err != nil {
			return fmt.Errorf("open decision log: %w", err)
		}
		defer func() { _ = store.Close() }()

		records, err := store.Query(context.Background(), logging.Query{})
		if err != nil {
			return fmt.Errorf("query decision log: %w", err)
		}
		switch exportFormat {
		case "csv":
			return export.WriteCSV(cmd.OutOrStdout(), records)
		case "json":
			return export.WriteJSON(cmd.OutOrStdout(), records)
		default:
			return fmt.Errorf("unknown format %s", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or json")
	rootCmd.AddCommand(exportCmd)
}
