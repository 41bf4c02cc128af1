package main

import (
	"fmt"
	"os"

	"github.com/m3rciful/videoshop/core/cmd"
	"github.com/m3rciful/videoshop/internal/app"
)

func main() {
	if err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
