// Package main provides the icestac command: an incremental STAC-like
// catalog builder for daily sea-ice shapefile releases.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polarview/icestac/internal/config"
	"github.com/polarview/icestac/internal/discover"
	"github.com/polarview/icestac/internal/logger"
	"github.com/polarview/icestac/internal/metrics"
	"github.com/polarview/icestac/internal/publish"
	"github.com/polarview/icestac/internal/repack"
	"github.com/polarview/icestac/internal/server"
	"github.com/polarview/icestac/internal/store"
	"github.com/polarview/icestac/internal/syncer"
)

var version = "dev"

var (
	cfgFile   string
	inputFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "icestac",
	Short: "icestac - incremental sea-ice STAC catalog builder",
	Long: `icestac discovers daily sea-ice shapefile releases on a remote archive,
repackages each release folder into a zip archive and a FlatGeobuf file,
and maintains two append-only parquet catalogs: one item per source
folder and one merged item per calendar day.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one catalog synchronization pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup("sync")
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var disc syncer.Discoverer
		if inputFile != "" {
			disc = jsonListDiscoverer{path: inputFile}
		} else {
			disc = &discover.Client{ListingURL: cfg.Source.ListingURL(time.Now()), Log: log}
		}

		pack := &repack.Packer{
			BaseURL: cfg.Source.ListingURL(time.Now()),
			ZipDir:  cfg.Catalog.ZipDir,
			FGBDir:  cfg.Catalog.FlatGeobufDir,
			Log:     log,
		}

		var pub syncer.AssetUploader
		if cfg.Publish.Enabled() {
			up, err := publish.New(ctx, cfg.Publish.Bucket, cfg.Publish.Region, cfg.Publish.Prefix, log)
			if err != nil {
				return err
			}
			pub = up
		}

		s := syncer.New(cfg, disc, pack, store.FileStore{}, pub, log, metrics.Init(version))
		sum, err := s.Run(ctx)
		if err != nil {
			return err
		}
		log.Info("sync complete",
			"discovered", sum.Discovered,
			"processed", sum.Processed,
			"skipped", sum.Skipped,
			"failed", sum.Failed,
			"grouped_items", sum.GroupedDiag.Partitions)
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Re-run the per-day merge pass over the grouped catalog",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := setup("merge")
		if err != nil {
			return err
		}
		diag, err := syncer.MergeCatalog(store.FileStore{}, cfg.Catalog.GroupedPath)
		if err != nil {
			return err
		}
		for _, id := range diag.DatetimeConflicts {
			log.Warn("merge partition datetime mismatch", "id", id)
		}
		log.Info("merge complete",
			"path", cfg.Catalog.GroupedPath,
			"items_in", diag.ItemsIn,
			"items_out", diag.Partitions,
			"links_deduped", diag.LinksDeduped)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalogs over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup("serve")
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, cfg, store.FileStore{}, log, metrics.Init(version))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("icestac %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	syncCmd.Flags().StringVar(&inputFile, "input", "", `pre-fetched folder list ({"list": [...]}) instead of scraping`)
	rootCmd.AddCommand(syncCmd, mergeCmd, serveCmd, versionCmd)
}

func setup(component string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	zl := logger.Build(logger.Config{
		Level:     cfg.Logging.Level,
		Console:   cfg.Logging.Console,
		Component: component,
	}, os.Stdout)
	return cfg, logger.NewSlog(&zl), nil
}

// jsonListDiscoverer adapts a pre-fetched folder list file to the
// Discoverer interface.
type jsonListDiscoverer struct{ path string }

func (j jsonListDiscoverer) List(context.Context) ([]discover.Folder, error) {
	return discover.FromJSONFile(j.path)
}
