package main

import (
	"os"

	"paytrack/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
