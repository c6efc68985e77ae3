package main

import (
	"fmt"
	"os"

	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/inspect"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "fitinspect",
		Usage:     "Summarize FIT, GPX and JSON activity files",
		UsageText: "fitinspect [--start S] [--end E] [--laps] [--no-color] FILE...",
		Version:   version,
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "start",
				Usage: "start of the range, in seconds from the first timestamp",
			},
			&cli.Float64Flag{
				Name:  "end",
				Usage: "end of the range, in seconds from the first timestamp",
			},
			&cli.BoolFlag{
				Name:  "laps",
				Usage: "print the lap table",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable coloured output",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.Bool("no-color") {
				disableStyling()
			}
			if ctx.NArg() == 0 {
				return fmt.Errorf("at least one FILE is required")
			}

			opts := inspect.Options{
				Laps:   ctx.Bool("laps"),
				Stdout: ctx.App.Writer,
				Stderr: ctx.App.ErrWriter,
			}
			if ctx.IsSet("start") {
				v := ctx.Float64("start")
				opts.Start = &v
			}
			if ctx.IsSet("end") {
				v := ctx.Float64("end")
				opts.End = &v
			}

			return inspect.Run(decode.DefaultRegistry(), ctx.Args().Slice(), opts)
		},
	}
}

func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
}
