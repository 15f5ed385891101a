package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	flagCfg  = "cfg"
	flagKind = "kind"
)

const (
	// App name
	appName = "xcall"
	// version represents the program based on the git tag
	version = "v0.1.0"
	// commit represents the program based on the git commit
	commit = "dev"
	// date represents the date of application was built
	date = ""
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = version
	app.Usage = "Cross chain calls over IBC between two local chains"
	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Application version and build",
			Action:  versionCmd,
		},
		{
			Name:    "devnet",
			Aliases: []string{"run"},
			Usage:   "Run two chains with xcall deployed and a relayer between them",
			Action:  runDevnet,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagCfg,
					Aliases:  []string{"c"},
					Usage:    "Configuration `FILE`",
					Required: false,
				},
			},
		},
		{
			Name:      "decode",
			Aliases:   []string{},
			Usage:     "Decode a hex encoded xcall message",
			ArgsUsage: "HEX",
			Action:    decodeCmd,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagKind,
					Aliases: []string{"k"},
					Usage:   "Encoding of HEX: csmessage or packet",
					Value:   kindCSMessage,
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", err)
		os.Exit(1)
	}
}
