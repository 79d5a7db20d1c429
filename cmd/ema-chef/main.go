package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/koscakluka/ema-chef/internal/config"
)

var (
	cfg            config.Config
	shutdownLogger func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "ema-chef",
	Short: "Voice cooking assistant",
	Long: `ema-chef runs a realtime cooking assistant that talks a cook through
onboarding, picking a dish and cooking it step by step.

Configuration is read from the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if shutdownLogger, err = setupLogging(); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if cfg, err = config.Load(); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownLogger != nil {
			_ = shutdownLogger(context.Background())
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, localCmd)
}

// setupLogging routes every otelslog logger to stdout.
func setupLogging() (func(context.Context) error, error) {
	exporter, err := stdoutlog.New()
	if err != nil {
		return nil, err
	}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))
	global.SetLoggerProvider(provider)
	return provider.Shutdown, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
