package main

import (
	"fmt"
	"os"

	"github.com/Harsh-BH/codepad/internal/app"
	"github.com/Harsh-BH/codepad/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := newCLIApp(cfg, logger).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
