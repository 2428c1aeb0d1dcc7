package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
	"github.com/bigeyedata/bigeye-mcp-server/internal/console"
	"github.com/bigeyedata/bigeye-mcp-server/internal/credstore"
	"github.com/bigeyedata/bigeye-mcp-server/internal/lineage"
	"github.com/bigeyedata/bigeye-mcp-server/internal/logging"
	"github.com/bigeyedata/bigeye-mcp-server/internal/server"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

var (
	version         string
	serverTransport string
	listenAddr      string
	verbose         bool
	noColor         bool
	debug           bool
	consoleMode     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bigeye-mcp-server",
	Short: "MCP server for the Bigeye data observability platform",
	Long: `bigeye-mcp-server exposes the Bigeye data observability platform over MCP
(Model Context Protocol).

It provides tools for data quality issue management, lineage graph analysis,
and agent lineage tracking: AI agents can record which tables and columns
they accessed and commit that access to Bigeye's lineage graph as edges
between the data assets and a custom agent node.

The server supports two modes:
- MCP server mode (default): serve tools over stdio or streamable-http
- Console mode (--console): an interactive console for exercising the
  Bigeye client and the lineage tracker directly

Configuration comes from the environment:
  BIGEYE_API_KEY       API key for the Bigeye instance (required)
  BIGEYE_WORKSPACE_ID  Workspace to operate in (required)
  BIGEYE_BASE_URL      Instance URL (default https://app.bigeye.com)
  MCP_AGENT_NAME       Display name for the agent lineage node`,
	RunE: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version for the application
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.Flags().StringVar(&serverTransport, "server-transport", transportStdio, "Transport protocol for the MCP server (stdio, streamable-http)")
	rootCmd.Flags().StringVar(&listenAddr, "listen-addr", ":8899", "Listen address for streamable-http server (path is fixed to /mcp)")
	rootCmd.Flags().BoolVar(&consoleMode, "console", false, "Start the interactive console instead of the MCP server")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable request/response debug logging")

	rootCmd.AddCommand(newCredentialsCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// validateTransport validates the transport configuration
func validateTransport() error {
	if serverTransport != transportStdio && serverTransport != transportStreamableHTTP {
		return fmt.Errorf("unsupported server transport '%s' (use stdio or streamable-http)", serverTransport)
	}
	return nil
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
}

// storedKeyLookup falls back to the encrypted credential store when
// BIGEYE_API_KEY is not set in the environment.
func storedKeyLookup(logger *logging.Logger) bigeye.KeyLookup {
	return func(instance string, workspaceID int64) (string, bool) {
		store, err := credstore.Open()
		if err != nil {
			logger.Debug("Credential store unavailable: %v", err)
			return "", false
		}
		key, ok := store.Get(instance, workspaceID)
		if ok {
			logger.Debug("Using stored API key for %s workspace %d", instance, workspaceID)
		}
		return key, ok
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := validateTransport(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	setupSignalHandler(cancel)

	logger := logging.NewLogger(verbose, !noColor, debug)

	cfg, err := bigeye.LoadConfigWithKeyLookup(storedKeyLookup(logger))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if debug {
		cfg.Debug = true
	}
	logger.Debug("Configured instance %s, workspace %d, API key %s",
		cfg.BaseURL, cfg.WorkspaceID, cfg.RedactedAPIKey())

	client := bigeye.NewClient(cfg, logger)
	tracker := lineage.NewTracker(client, cfg.AgentName, cfg.WorkspaceID, logger)

	if consoleMode {
		c := console.New(cfg, client, tracker, logger)
		if err := c.Run(ctx); err != nil {
			return fmt.Errorf("console error: %w", err)
		}
		return nil
	}

	srv, err := server.New(cfg, client, tracker, serverTransport, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	logger.Info("Starting bigeye-mcp-server (transport: %s)...", serverTransport)
	if serverTransport == transportStreamableHTTP {
		if !strings.Contains(listenAddr, ":") {
			listenAddr = ":" + listenAddr
		}
		logger.Info("Listening on %s%s", listenAddr, "/mcp")
	}

	if err := srv.Start(ctx, listenAddr); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
