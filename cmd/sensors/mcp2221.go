package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tendof/adapter"
	"github.com/mklimuk/tendof/cmd/sensors/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "talk to the MCP2221 usb-i2c bridge directly",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the bridge status",
	Action: func(c *cli.Context) error {
		a, err := bridge(c)
		if err != nil {
			return err
		}
		status, err := a.Status(commandContext(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Action: func(c *cli.Context) error {
		a, err := bridge(c)
		if err != nil {
			return err
		}
		status, err := a.ReleaseBus(commandContext(c))
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

// bridge opens the bridge selected by the configuration or --index.
func bridge(c *cli.Context) (*adapter.MCP2221, error) {
	cfg, err := settings(c)
	if err != nil {
		return nil, err
	}
	return adapter.NewMCP2221(adapter.WithDeviceIndex(cfg.MCP2221Index)), nil
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(v); err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}
