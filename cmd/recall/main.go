package main

import (
	"fmt"
	"os"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a short banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  recall - read-only viewer for Windows Recall capture databases

  Usage: recall [global options] <command> [options]
         recall --help

  MCP server mode requires piped input (or: recall mcp).`)
}

func main() {
	args := os.Args

	// No args: banner on a terminal, MCP server when piped.
	if len(args) < 2 {
		if isTerminal() {
			printBanner()
			return
		}
		args = append(args, "mcp")
	}

	app := newCLIApp(os.Stdin, os.Stdout)
	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
