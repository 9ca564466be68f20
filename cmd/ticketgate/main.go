package main

import (
	"os"

	"github.com/dshills/ticketgate/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
