package main

import (
	"os"

	"github.com/sadopc/toki/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
