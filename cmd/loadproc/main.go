package main

import (
	"os"
)

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/config"
	"github.com/simplyvikram/koho-account-load-up/internal/logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("loadproc failed")
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to YAML config file",
		EnvVars: []string{"LOADPROC_CONFIG"},
	}

	return &cli.App{
		Name:  "loadproc",
		Usage: "Evaluate customer fund loads against velocity limits",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error); overrides config",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log format (console, json); overrides config",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "process",
				Usage: "Read line-delimited load requests and write one outcome per line",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "input file (- for stdin)",
						Value:   "-",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "output file (- for stdout)",
						Value:   "-",
					},
					&cli.BoolFlag{
						Name:  "skip-malformed",
						Usage: "log and drop malformed input lines instead of failing",
					},
					&cli.IntFlag{
						Name:  "shards",
						Usage: "customer partitions evaluated in parallel; overrides config",
					},
				},
				Action: processAction,
			},
			{
				Name:  "serve",
				Usage: "Run the loads HTTP API",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address; overrides config",
					},
				},
				Action: serveAction,
			},
		},
	}
}

// loadConfig reads the config file and applies the global log flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
