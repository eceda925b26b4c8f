package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sitesmith-tech/sitesmith/internal/container"
	"github.com/sitesmith-tech/sitesmith/internal/observability"
)

var (
	servePort   string
	serveAddr   string
	serveAPIKey string
	serveNoAuth bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the provisioning API server",
	Long: `Start the provisioning API server.

The server exposes:
  - POST /api/v1/provision to trigger a provisioning run
  - GET  /api/v1/clients/{id}/status for client status
  - GET  /api/v1/clients/{id}/deployments for run history
  - GET  /api/v1/runs/{id}/ws for live progress over WebSocket

Examples:
  # Start on default port 8080
  sitesmith serve

  # Start on custom port
  sitesmith serve --port 3000

Authentication:
  Requests are authenticated with API keys when any are configured.
  Set them in sitesmith.yaml under auth.api_keys, via the
  SITESMITH_AUTH_API_KEYS environment variable, or with --api-key.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: 8080)")
	serveCmd.Flags().StringVar(&serveAddr, "address", "", "Address to listen on (e.g., localhost:8080)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "API key for request authentication")
	serveCmd.Flags().BoolVar(&serveNoAuth, "no-auth", false, "Disable authentication (not recommended for production)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	} else if servePort != "" {
		cfg.Server.Addr = ":" + servePort
	}

	if serveAPIKey != "" {
		cfg.Auth.APIKeys = []string{serveAPIKey}
	} else if serveNoAuth {
		cfg.Auth.APIKeys = nil
	}

	if len(cfg.Auth.APIKeys) == 0 {
		printWarning("Authentication is disabled. Not recommended for production.")
	}

	observability.InitGlobal(versionInfo.Version)
	if cfg.Log.Level == "debug" {
		observability.SetTracer(observability.NewLoggingTracer(slog.New(logger), "sitesmith"))
	}

	app, err := container.New(cfg, slog.New(logger))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}

	server := app.Server()

	fmt.Printf("Starting SiteSmith server on %s\n", cfg.Server.Addr)
	fmt.Printf("Press Ctrl+C to stop\n\n")
	fmt.Printf("API endpoints:\n")
	fmt.Printf("  Health:     http://%s/health\n", displayAddress(cfg.Server.Addr))
	fmt.Printf("  Provision:  http://%s/api/v1/provision\n", displayAddress(cfg.Server.Addr))
	fmt.Printf("  WebSocket:  ws://%s/api/v1/runs/{id}/ws\n", displayAddress(cfg.Server.Addr))
	fmt.Println()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println("\nServer stopped gracefully")
	return nil
}

// displayAddress converts ":8080" to "localhost:8080" for display.
func displayAddress(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
