package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swissarmyhammer/agentcore/internal/acpserver"
	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveDir      string
	serveHTTPPort int
)

// serveCmd is the ACP entry point (SPEC_FULL.md §6.1): reads
// line-delimited JSON-RPC 2.0 requests from stdin and writes responses/
// notifications to stdout. This is the default, primary transport.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Speak the Agent Client Protocol over stdio",
	Long: `Start the agent runtime as an ACP peer over stdio: reads
line-delimited JSON-RPC 2.0 requests from stdin and writes responses and
session/update notifications to stdout. This is the transport a client
IDE drives; see 'serve http' for the diagnostic HTTP+SSE variant.`,
	RunE: runServeStdio,
}

var serveHTTPCmd = &cobra.Command{
	Use:   "http",
	Short: "Expose the same ACP methods over HTTP+SSE (diagnostic)",
	RunE:  runServeHTTP,
}

func init() {
	serveCmd.PersistentFlags().StringVar(&serveDir, "directory", "", "Working directory")
	serveHTTPCmd.Flags().IntVarP(&serveHTTPPort, "port", "p", 8080, "Port to listen on")
	serveCmd.AddCommand(serveHTTPCmd)
}

func runServeStdio(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := buildACPRuntime(ctx, workDir)
	if err != nil {
		return err
	}
	defer rt.Close()
	if _, err := rt.store.Restore(); err != nil {
		logging.Warn().Err(err).Msg("restoring persisted sessions")
	}

	conn := acpserver.NewConn(os.Stdin, os.Stdout)
	rt.toolRegExec.ClientFS = acpserver.NewClientFS(conn)
	rt.toolRegExec.ClientTerminal = acpserver.NewClientTerminal(conn)
	srv := acpserver.NewServer(conn, rt.store, rt.cancelReg, rt.plans, rt.query, rt.toolExec, rt.policy, rt.caps, rt.orchCfg, rt.availableTools, rt.cmds)

	logging.Info().Str("directory", workDir).Msg("agentcore serving ACP over stdio")
	return srv.Run(ctx)
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := buildACPRuntime(ctx, workDir)
	if err != nil {
		return err
	}
	defer rt.Close()
	if _, err := rt.store.Restore(); err != nil {
		logging.Warn().Err(err).Msg("restoring persisted sessions")
	}

	cfg := server.DefaultConfig()
	cfg.Port = serveHTTPPort
	srv := server.New(cfg, rt.store, rt.cancelReg, rt.plans, rt.query, rt.toolExec, rt.policy, rt.caps, rt.orchCfg, rt.availableTools, rt.cmds)

	go func() {
		logging.Info().Int("port", serveHTTPPort).Msg("agentcore serving ACP over HTTP+SSE")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down HTTP transport")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
