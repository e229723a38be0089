package main

import (
	"os"

	"github.com/rcliao/codex-mem/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
