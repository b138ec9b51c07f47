package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fixdesk/fixdesk/internal/server"
)

var (
	servePort int
	serveHost string
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default 8470)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host address to bind to (default localhost)")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI server",
	Long: `Start the HTTP server for the fixdesk web UI.

The web UI provides:
  - The front-desk device check-in form
  - The password-gated technician triage queue
  - The customer repair status lookup

Examples:
  fixdesk serve                 # Start on localhost:8470
  fixdesk serve --port 8080     # Start on a custom port
  fixdesk serve --host 0.0.0.0  # Bind to all interfaces`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	database, repo, svc, err := openServices()
	if err != nil {
		return err
	}
	defer database.Close()

	host := serveHost
	if host == "" {
		host = globalConfig.Host
	}
	port := servePort
	if port == 0 {
		port = globalConfig.Port
	}

	srv, err := server.New(server.Config{
		Host:               host,
		Port:               port,
		Service:            svc,
		Repo:               repo,
		TechnicianPassword: globalConfig.TechnicianPassword,
		SessionSecret:      globalConfig.SessionSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	OutputLine("Fixdesk server starting at http://%s", srv.Address())
	OutputLine("Press Ctrl+C to stop")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stop:
		OutputLine("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	OutputLine("Server stopped")
	return nil
}
