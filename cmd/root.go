// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/internal/config"
	"github.com/guidelight-ai/guidelight/internal/observability"
)

var cfgFile string

// NewRootCommand builds a fresh root command tree. A new instance per
// invocation keeps flag state from leaking between runs in tests.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "guidelight",
		Short:   "Guidelight is a safety-gated voice browsing copilot.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				// Fall back to a usable logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "guidelight",
				})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting guidelight", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

// Execute runs the CLI under the given signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// initializeConfig reads in the config file and environment variables.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("GUIDELIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}
	return nil
}
