package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"resumerank/internal/config"
	"resumerank/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local session API",
	Long: `Start an HTTP server that exposes one upload session.

Available endpoints:
- GET /health: Health check including the analysis endpoint circuit breaker
- GET /stats: Session, rate limiting and server statistics
- GET /queue, POST /queue, DELETE /queue, DELETE /queue/{id}: Manage queued files
- POST /submit: Analyze every queued file against {"jobDescription": "..."}
- GET /results: Last ranked summary
- POST /reset: Start over with an empty session`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		return serveFlags.apply(cmd, cfg)
	},
	RunE: runServe,
}

var (
	servePort  string
	serveHost  string
	serveFlags clientFlags
)

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveFlags.register(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	serverCfg := server.ConfigFrom(rt.cfg, Version)
	serverCfg.Breaker = rt.uploader.Breaker()
	serverCfg.Observability = rt.om

	srv := server.NewServer(rt.cfg, rt.session, serverCfg, rt.logger)
	srv.Out = cmd.OutOrStdout()

	watcher, err := newAPIKeyWatcher(rt, srv)
	if err != nil {
		return err
	}
	if watcher != nil {
		srv.AttachKeyWatcher(watcher)
	}

	return srv.Start(cmd.Context())
}

// newAPIKeyWatcher keeps the session API keys in sync with Vault when both
// Vault and a refresh interval are configured
func newAPIKeyWatcher(rt *runtime, srv *server.Server) (*server.APIKeyWatcher, error) {
	vc := rt.cfg.Vault
	if !vc.Enabled || vc.RefreshInterval <= 0 || vc.Secrets.APIKeys == "" {
		return nil, nil
	}

	client, err := config.NewVaultClient(vc, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client for API key refresh: %w", err)
	}
	return server.NewAPIKeyWatcher(client, vc.Secrets.APIKeys, vc.RefreshInterval, srv.SetAPIKeys, rt.logger), nil
}
