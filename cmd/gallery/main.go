// Package main provides the gallery binary: the HTTP API server and a small
// CLI for inspecting the stored collection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/gallery/internal/config"
	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/logging"
	"github.com/vbonduro/gallery/internal/metrics"
	"github.com/vbonduro/gallery/internal/realtime"
	"github.com/vbonduro/gallery/internal/service"
	"github.com/vbonduro/gallery/internal/view"
	"github.com/vbonduro/gallery/internal/web"
)

const (
	Version = "0.1.0"
	appName = "gallery"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Photo gallery server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty keeps only the fallback store)")
	cmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the fallback collection blob")

	cmd.AddCommand(serveCmd(cfg), listCmd(cfg), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

func serveCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address to listen on")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write logs to this file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hub := realtime.NewHub(logger, cfg.CORSOrigins)
	go hub.Run(ctx)

	svc, closeStore := service.Bootstrap(ctx, service.BootstrapConfig{
		DBPath:  cfg.DBPath,
		DataDir: cfg.DataDir,
	}, hub, m, logger)
	defer closeStore()

	server := web.NewServer(svc, hub, m, cfg.CORSOrigins, logger)
	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

type listOptions struct {
	category string
	sort     string
	query    string
	asJSON   bool
}

func listCmd(cfg *config.Config) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored photos using the gallery's filter, search and sort rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.category, "category", domain.CategoryAll, "Category filter")
	cmd.Flags().StringVar(&opts.sort, "sort", string(domain.SortNewest), "Sort mode (newest, oldest, most-liked)")
	cmd.Flags().StringVar(&opts.query, "q", "", "Case-insensitive search over title, author, location and category")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func list(ctx context.Context, out io.Writer, cfg *config.Config, opts listOptions) error {
	filter, err := domain.ParseFilter(opts.category)
	if err != nil {
		return err
	}
	mode, err := domain.ParseSortMode(opts.sort)
	if err != nil {
		return err
	}

	logger := logging.NewWithWriter(os.Stderr, "warn")
	svc, closeStore := service.Bootstrap(ctx, service.BootstrapConfig{
		DBPath:  cfg.DBPath,
		DataDir: cfg.DataDir,
	}, nil, nil, logger)
	defer closeStore()

	photos := svc.Query(view.Criteria{Category: filter, Sort: mode, Search: opts.query})
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(photos)
	}
	return printTable(out, photos)
}

func printTable(out io.Writer, photos []*domain.Photo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCATEGORY\tLOCATION\tLIKES\tCREATED")
	for _, p := range photos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Title, p.Author, p.Category, p.Location, p.Likes,
			time.UnixMilli(p.TS).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
