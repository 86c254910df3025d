// Command memento manages versioned agent memory from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/memento/internal/cli"
	"github.com/roach88/memento/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memento: %v\n", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(cli.Run(cfg, os.Args[1:], os.Stdout, os.Stderr))
}
