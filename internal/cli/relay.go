package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/config"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/logger"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/relay"
)

// NewRelayCmd builds the subcommand that serves the connection broker.
func NewRelayCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Start the connection-brokering relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), *configPath, *port)
		},
	}
}

func runRelay(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     relay.NewServer(log).Handler(),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting relay")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("relay failed to start")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down relay...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down relay...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
