package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"econia/config"
	"econia/infra/logging"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the state shared by subcommands once the root pre-run has loaded
// the configuration.
type app struct {
	v      *viper.Viper
	conf   config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	def := config.Default()

	cmd := &cobra.Command{
		Use:           "econia",
		Short:         "Central limit order book exchange engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			conf, err := config.Load(a.v)
			if err != nil {
				return err
			}
			if err := config.EnsureRoot(conf.Home); err != nil {
				return err
			}
			logger, err := logging.New(conf.LogLevel, conf.LogFormat, os.Stderr)
			if err != nil {
				return err
			}
			a.conf, a.logger = conf, logger
			return nil
		},
	}

	home := os.ExpandEnv(filepath.Join("$HOME", config.DefaultHome))
	cmd.PersistentFlags().String(config.HomeFlag, home, "directory for config and data")
	cmd.PersistentFlags().String("log-level", def.LogLevel, "log level")
	cmd.PersistentFlags().String("log-format", def.LogFormat, "log format (json|plain)")

	cmd.AddCommand(newServeCmd(a), newSnapshotCmd(a))
	return cmd
}
