package main

import (
	"fmt"
	"os"

	"github.com/camtrack/dcerno-vhd/cmd"
	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/buildinfo"
)

// buildDate and version are set at build time with -ldflags "-X main.version=..."
var (
	buildDate string
	version   string
)

func main() {
	ctx := app.NewContext(&buildinfo.Context{
		Version:   version,
		BuildDate: buildDate,
	})

	rootCmd := cmd.RootCommand(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
