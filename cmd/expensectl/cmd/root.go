// Package cmd provides the expensectl commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/config"
	"github.com/garyjia/expense-approval/internal/container"
	"github.com/garyjia/expense-approval/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
	logger  = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "expensectl",
	Short: "Operate the expense approval service",
	Long: `expensectl inspects exchange rates, exports spend reports and
lists the user directory of the expense approval service.

Example:
  expensectl rates get EUR USD
  expensectl rates clear --server http://localhost:8080
  expensectl report --user user-1 --scope company --currency EUR
  expensectl users list --role Manager`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = gotenv.Load()

		level := "info"
		if debug {
			level = "debug"
		}
		l, err := utils.NewCLILogger(level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and environment when empty)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(usersCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// startContainer opens the database and wires the services
func startContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// The CLI never notifies approvers
	cfg.Lark.AppID, cfg.Lark.AppSecret = "", ""

	app, err := container.NewContainer(cfg, logger, container.Options{})
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return app, nil
}
