package main

import (
	"os"

	"github.com/polarfoxDev/drydock/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
