package cmd

import (
	"github.com/urfave/cli/v2"
)

const VERSION = "v0.1.0"

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "config file path, defaults are used when empty",
}

var App = &cli.App{
	Name:    "tunio",
	Usage:   "provision a tun/tap interface and drive its packet queues",
	Version: VERSION,
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "create the interface and pump its queues in the foreground",
			Flags: []cli.Flag{
				configFlag,
				&cli.StringFlag{
					Name:  "dev",
					Usage: "override tun.dev",
				},
			},
			Action: run,
		},
		{
			Name:   "start",
			Usage:  "run in the background",
			Flags:  []cli.Flag{configFlag},
			Action: start,
		},
		{
			Name:   "stop",
			Usage:  "stop a background instance",
			Flags:  []cli.Flag{configFlag},
			Action: stop,
		},
		{
			Name:   "config",
			Usage:  "print the default configuration",
			Action: printConfig,
		},
	},
}
