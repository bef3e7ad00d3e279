// Package cli is the ragctl command tree. Every command runs in-process against the
// same stores and providers the API server uses.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/GoRAG/internal/bootstrap"
	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	uploadDir  string
	jsonOutput bool

	// app is built lazily by commands that need providers
	app *bootstrap.App

	// buildApp is swapped in tests
	buildApp = func(ctx context.Context) (*bootstrap.App, error) {
		cfg, err := config.LoadProviderConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load provider config: %w", err)
		}
		return bootstrap.Build(ctx, cfg, uploadDir)
	}
)

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Ingest documents and ask questions against GoRAG projects",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logger_i.InitTo(os.Stderr)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		err := app.Close()
		app = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", envOr("PROVIDER_CONFIG", "gorag.yaml"), "provider config file")
	rootCmd.PersistentFlags().StringVar(&uploadDir, "upload-dir", envOr("UPLOAD_DIR", config.UploadRootDir), "directory for uploaded files")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func ensureApp(cmd *cobra.Command) (*bootstrap.App, error) {
	if app != nil {
		return app, nil
	}
	built, err := buildApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	app = built
	return app, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
