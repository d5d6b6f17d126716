package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"presence/internal/attendance"
	"presence/internal/config"
	"presence/internal/directory"
)

var (
	cfgFile string
	csvPath string
	xmlPath string
	verbose bool

	app config.App
)

var rootCmd = &cobra.Command{
	Use:   "presencectl",
	Short: "Inspect presence data and manage the serving cache",
	Long: `presencectl reads the same attendance CSV and user directory XML as the
API server and prints per-weekday aggregations. It can also broadcast a
cache reset to running servers.

Configuration follows the server: .env, PRESENCE_CONFIG and environment
variables, with --csv and --xml taking precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("PRESENCE_CONFIG", cfgFile); err != nil {
				return err
			}
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if csvPath != "" {
			cfg.DataCSV = csvPath
		}
		if xmlPath != "" {
			cfg.DataXML = xmlPath
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		slog.SetDefault(cfg.Logger(cmd.ErrOrStderr()))
		app = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides PRESENCE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&csvPath, "csv", "", "attendance CSV (overrides DATA_CSV)")
	rootCmd.PersistentFlags().StringVar(&xmlPath, "xml", "", "user directory XML (overrides DATA_XML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log skipped rows and cache activity")
}

func newService() *attendance.Service {
	return attendance.NewService(attendance.NewRepository(app.DataCSV), directory.NewRepository(app.DataXML), nil)
}

func fail(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
