package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nasti98RS/swarm-db-api/internal/config"
	"github.com/Nasti98RS/swarm-db-api/internal/logging"
	handler "github.com/Nasti98RS/swarm-db-api/internal/transport/http"
	v1 "github.com/Nasti98RS/swarm-db-api/internal/transport/http/v1"
	"github.com/Nasti98RS/swarm-db-api/internal/transport/mcpserver"
	"github.com/Nasti98RS/swarm-db-api/internal/transport/ws"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "swarm-db-api",
	Short: "Multi-agent chat API over a product database",
	Long: `swarm-db-api routes each user's chat turns to one of a small set of
agents (triage, lister, adder, deleter, updater). Agents hand the
conversation to each other and work on the product records through tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket chat API",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the product tools over MCP on stdio",
	RunE:  runMCP,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Print the agent table",
	RunE:  runAgents,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, mcpCmd, agentsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var events v1.EventReader
	if a.events != nil {
		events = a.events
	}
	h := v1.NewHandler(a.dispatcher, a.db, events, logger)
	e := handler.NewServer(h, ws.NewServer(ws.DefaultConfig(), a.dispatcher, logger), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("API started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := mcpserver.New(a.tools, a.policy, logger,
		"get_all_products", "insert_a_product", "delete_a_product", "update_a_product")
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}

func runAgents(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHANDOFF\tTOOLS\tTRANSFERS")
	for _, ag := range a.registry.List() {
		marker := ""
		if ag.ID == a.registry.Default().ID {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%v\t%v\n", ag.ID, marker, ag.Name, ag.Handoff.Tool, ag.Tools, ag.Transfers)
	}
	return w.Flush()
}
