package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tendof/cmd/sensors/console"
	"github.com/mklimuk/tendof/config"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "manage the configuration file",
	Subcommands: cli.Commands{
		&configInitCmd,
		&configShowCmd,
	},
}

var configInitCmd = cli.Command{
	Name:      "init",
	Usage:     "write a configuration file with default settings",
	ArgsUsage: "[path]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "overwrite an existing file without asking",
		},
	},
	Action: func(c *cli.Context) error {
		path := c.String("config")
		if c.Args().Present() {
			path = c.Args().First()
		}
		_, err := os.Stat(path)
		switch {
		case err == nil && !c.Bool("force"):
			overwrite, err := console.Confirm(path + " exists, overwrite?")
			if err != nil {
				return console.Fail("prompt error", err)
			}
			if !overwrite {
				console.Warn("configuration left untouched")
				return nil
			}
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return console.Fail("could not access "+path, err)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return console.Fail("could not save configuration", err)
		}
		console.PInfof(console.PictoNotebook, "configuration written to %s", console.White(path))
		return nil
	},
}

var configShowCmd = cli.Command{
	Name:  "show",
	Usage: "print the effective configuration (file and flags)",
	Action: func(c *cli.Context) error {
		cfg, err := settings(c)
		if err != nil {
			return err
		}
		return printYAML(cfg)
	},
}
