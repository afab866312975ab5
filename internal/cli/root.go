package cli

import (
	"auth-shell/internal/config"
	"auth-shell/internal/logger"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "auth-shell",
	Short: "Login/logout shell backed by an Auth0 tenant",
	Long: `auth-shell serves a single page with a login or logout button. Sign-in is
delegated to an Auth0 (OIDC) tenant; sessions are kept in Redis.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		cfg = loaded

		logger.Init(logger.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: cmd.ErrOrStderr(),
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error); overrides LOG_LEVEL")
}

func Execute() error {
	return rootCmd.Execute()
}
