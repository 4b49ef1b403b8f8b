package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/efebarandurmaz/impactgraph/internal/config"
	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/efebarandurmaz/impactgraph/internal/impact"
	"github.com/efebarandurmaz/impactgraph/internal/observability"
	"github.com/efebarandurmaz/impactgraph/internal/query"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	rootCmd := &cobra.Command{
		Use:          "impactgraph",
		Short:        "Failure impact analysis over a system dependency graph",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()))
			for _, warning := range cfg.Validate() {
				slog.Warn("config", "warning", warning)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML); environment uses the IMPACT_ prefix")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the impact graph HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	systemsCmd := &cobra.Command{
		Use:   "systems",
		Short: "List every known system id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *query.Service) error {
				res, err := svc.ListSystems(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	var (
		fullFormat  string
		fullSummary bool
	)
	fullCmd := &cobra.Command{
		Use:   "full",
		Short: "Print the full dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := impact.ParseFormat(fullFormat)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *query.Service) error {
				g, err := svc.FullGraph(ctx)
				if err != nil {
					return err
				}
				return printGraph(cmd.OutOrStdout(), g, format, "", fullSummary)
			})
		},
	}
	fullCmd.Flags().StringVar(&fullFormat, "format", "json", "Output format: json, dot or mermaid")
	fullCmd.Flags().BoolVar(&fullSummary, "summary", false, "Print counts instead of the graph")

	var affectedDepth int
	affectedCmd := &cobra.Command{
		Use:   "affected <system-id>",
		Short: "List systems affected when a system fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *query.Service) error {
				res, err := svc.Affected(ctx, args[0], affectedDepth)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	affectedCmd.Flags().IntVar(&affectedDepth, "depth", 0, "Maximum hops from the failed system (0 = configured default)")

	var (
		downDepth   int
		downFormat  string
		downSummary bool
	)
	downstreamCmd := &cobra.Command{
		Use:   "downstream <system-id>",
		Short: "Print the subgraph reachable from a failed system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := impact.ParseFormat(downFormat)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, svc *query.Service) error {
				g, err := svc.Downstream(ctx, args[0], downDepth)
				if err != nil {
					return err
				}
				return printGraph(cmd.OutOrStdout(), g, format, args[0], downSummary)
			})
		},
	}
	downstreamCmd.Flags().IntVar(&downDepth, "depth", 0, "Maximum hops from the failed system (0 = configured default)")
	downstreamCmd.Flags().StringVar(&downFormat, "format", "json", "Output format: json, dot or mermaid")
	downstreamCmd.Flags().BoolVar(&downSummary, "summary", false, "Print counts instead of the graph")

	rootCmd.AddCommand(serveCmd, systemsCmd, fullCmd, affectedCmd, downstreamCmd)
	return rootCmd
}

// withService opens the configured backend for a single command and closes
// it afterwards.
func withService(ctx context.Context, cfg *config.Config, fn func(context.Context, *query.Service) error) error {
	b, err := openBackend(ctx, cfg.Graph, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(context.Background()); err != nil {
			slog.Warn("closing graph backend", "backend", b.name, "error", err)
		}
	}()

	svc := query.NewService(b.source, query.Options{
		Backend:      b.name,
		DefaultDepth: cfg.Traversal.DefaultDepth,
		MaxDepth:     cfg.Traversal.MaxDepth,
		Timeout:      cfg.Traversal.QueryTimeout,
		Logger:       slog.Default(),
	})
	return fn(ctx, svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGraph(w io.Writer, g *graph.Graph, format impact.Format, root string, summary bool) error {
	if summary {
		_, err := fmt.Fprint(w, impact.FormatSummary(impact.Summarize(g)))
		return err
	}
	out, err := impact.Render(g, format, root)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
