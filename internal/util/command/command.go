package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/client"
	"github.com/dream-factory-code/go-tolar/internal/config"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const metricsShutdownTimeout = 5 * time.Second

// LoggerConfig converts the logger section for util.ConfigureLogger.
func LoggerConfig(cfg config.Logger) util.LoggerConfig {
	return util.LoggerConfig{
		Level:              cfg.Level,
		PrettyPrintConsole: cfg.PrettyPrintConsole,
		FilePath:           cfg.FilePath,
		MaxSizeMB:          cfg.MaxSizeMB,
		MaxBackups:         cfg.MaxBackups,
		MaxAgeDays:         cfg.MaxAgeDays,
	}
}

// WithClient configures logging, initializes a client and runs f with it.
// When a metrics listen address is configured, /metrics is served for the
// duration of f.
func WithClient(ctx context.Context, cfg config.Client, f func(ctx context.Context, c *client.Client) error) error {
	util.ConfigureLogger(LoggerConfig(cfg.Logger))

	c, cleanup, err := client.InitClient(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize client")
		return err
	}
	defer cleanup()

	if cfg.Metrics.ListenAddress != "" {
		stop := serveMetrics(cfg.Metrics.ListenAddress, c)
		defer stop()
	}

	return f(ctx, c)
}

func serveMetrics(addr string, c *client.Client) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", addr).Msg("Metrics listener failed")
		}
	}()

	log.Debug().Str("address", addr).Msg("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down metrics listener")
		}
	}
}

// NewSubcommandGroup returns a command that only groups subCommands.
func NewSubcommandGroup(name string, subCommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <subcommand>", name),
		Short: fmt.Sprintf("%s related subcommands", name),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subCommands...)

	return cmd
}
