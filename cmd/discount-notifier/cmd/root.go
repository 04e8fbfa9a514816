// Package cmd implements the discount-notifier CLI commands.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/discount-notifier/internal/api/client"
	"github.com/donaldgifford/discount-notifier/internal/config"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "discount-notifier",
		Short: "Watch retailer sale pages and alert on deep discounts",
		Long: "discount-notifier collects products from retailer listing pages,\n" +
			"keeps the ones discounted at or above a threshold, and posts each new\n" +
			"find to Discord or a generic webhook exactly once.",
		SilenceUsage: true,
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		return ExitConfig
	}
	return ExitFailure
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (DN_* environment only when empty)")
	rootCmd.PersistentFlags().
		String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().
		String("log-format", "", "log format override (text, json)")
	rootCmd.PersistentFlags().
		String("server", "http://localhost:8080", "API server URL for client commands")
	rootCmd.PersistentFlags().
		String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format")))
	cobra.CheckErr(viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(testWebhookCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(versionCmd())
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"))
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}
