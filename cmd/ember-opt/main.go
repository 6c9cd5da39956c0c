// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"ember/internal/ir"
	"ember/internal/irtext"
	"ember/internal/passes"
)

func main() {
	verbosity := flag.Int("v", 0, "log verbosity (0 = quiet, 2 = per-pass detail)")
	printInput := flag.Bool("print-input", false, "echo the parsed module before optimizing")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ember-opt [flags] <file.eir>")
		os.Exit(1)
	}
	commonlog.Configure(*verbosity, nil)

	startTime := time.Now()
	path := flag.Arg(0)

	file, err := irtext.ParseFile(path)
	if err != nil {
		color.Red("Optimization failed after %s", formatDuration(time.Since(startTime)))
		os.Exit(1)
	}

	cx := ir.NewContext()
	mods, err := irtext.Lower(cx, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		color.Red("Optimization failed after %s", formatDuration(time.Since(startTime)))
		os.Exit(1)
	}

	pipeline := passes.NewPipeline(cx)
	for _, m := range mods {
		if *printInput {
			fmt.Print(ir.PrintModule(cx, m))
			fmt.Println()
		}
		if _, err := pipeline.RunModule(m); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			color.Red("Optimization failed after %s", formatDuration(time.Since(startTime)))
			os.Exit(1)
		}
		fmt.Print(ir.PrintModule(cx, m))
	}

	color.Green("Successfully optimized %s in %s", path, formatDuration(time.Since(startTime)))
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	default:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1000.0)
	}
}
