package main

import (
	"os"

	"guesser/cli"
)

func main() {
	os.Exit(cli.Execute())
}
