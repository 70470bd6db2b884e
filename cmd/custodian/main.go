package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/eigerco/custodian/internal/config"
	"github.com/eigerco/custodian/pkg/log"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Root.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "custodian",
		Usage: "Default admin rules and a signed request forwarder on a permissioned ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"CUSTODIAN_CONFIG"},
				Usage:   "path to a TOML config file",
			},
		},
		Before: func(cctx *cli.Context) error {
			cfg, err := config.Load(cctx.String("config"))
			if err != nil {
				return err
			}
			level, err := log.ParseLogLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			format, err := log.ParseLoggerType(cfg.Log.Format)
			if err != nil {
				return err
			}
			log.Init(log.Options{LogLevel: level, Type: format})
			cctx.App.Metadata["config"] = cfg
			return nil
		},
		Commands: []*cli.Command{
			configCmd,
			keysCmd,
			ledgerCmd,
			relayCmd,
			adminCmd,
		},
	}
}

func configFrom(cctx *cli.Context) config.Config {
	return cctx.App.Metadata["config"].(config.Config)
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Print the effective configuration as TOML",
	Action: func(cctx *cli.Context) error {
		return configFrom(cctx).Write(cctx.App.Writer)
	},
}
