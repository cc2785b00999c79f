package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "spectl",
	Short: "Spectl plans and submits spectroscopic tile jobs",
	Long: `spectl is the operator tool for the specplane tile-job pipeline.

It selects science exposures from per-night exposure tables, bundles
them into per-tile job plans, generates the batch scripts that drive
the reduction stages (group, coadd, redshift fit) and hands them to an
execution backend. Every hand-off can be recorded in the submission
registry, which the dashd service serves back as a status feed.

Common workflows:

  Preview the jobs a selection would produce:
    spectl plan --tile 80605 --group pernight

  Submit cumulative jobs for two nights:
    spectl submit --nights 20201214,20201215

  Watch recent submissions:
    spectl status

  Retry a failed submission:
    spectl failed retry <submission-id>

Configuration:
  Planning commands read specplane.yaml (or --config) plus SPECPLANE_*
  environment variables. Feed commands only need the dashboard URL:
    SPECPLANE_DASHBOARD_URL    dashd endpoint (default: http://localhost:7171)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("specplane")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/specplane")
	}

	// Read environment variables that match "SPECPLANE_VARNAME"
	viper.SetEnvPrefix("SPECPLANE")
	viper.AutomaticEnv()

	// A missing config file is fine here; feed commands run on flags and
	// env alone, and planning commands surface their own config errors.
	_ = viper.ReadInConfig()
}

// newLogger builds the CLI logger. Tables and status output go to
// stdout, so logs keep to stderr, quiet unless --verbose is given.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is specplane.yaml in . or /etc/specplane)")

	rootCmd.PersistentFlags().String("url", "http://localhost:7171", "dashd service URL")
	viper.BindPFlag("dashboard_url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
