package main

import (
	"os"

	"github.com/schemalint/schemalint/internal/cli/commands"
)

func main() {
	os.Exit(commands.ExitCode(commands.Execute()))
}
