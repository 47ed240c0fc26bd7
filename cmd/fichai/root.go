package main

import (
	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/spf13/cobra"
)

// app carries the state shared by subcommands once the configuration is
// loaded.
type app struct {
	configFile string
	settings   *conf.Settings
	log        logger.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "fichai",
		Short:         "Staff attendance alerting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "",
		"config file (default: ./config.yaml, ./config, ~/.fichai or /etc/fichai)")

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newSeedRulesCommand(a),
		newVersionCommand(),
	)
	return root
}

// load reads the configuration and builds the process logger. Logs go to
// stderr so command output stays clean.
func (a *app) load(cmd *cobra.Command) error {
	settings, err := conf.Load(a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings
	a.log = logger.NewZapLogger(cmd.ErrOrStderr(), logger.ParseLevel(settings.Logging.Level), settings.Logging.Format).
		With(logger.String("service", "fichai"))
	return nil
}
