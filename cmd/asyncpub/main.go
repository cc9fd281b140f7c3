package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "asyncpub",
		Usage: "Publish messages to a broker through an asynchronous publisher",
		Commands: []*cli.Command{
			{
				Name:      "publish",
				Usage:     "Queue messages from arguments or stdin lines and flush them before exit",
				ArgsUsage: "[message...]",
				Flags:     publishFlags(),
				Action:    run,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
