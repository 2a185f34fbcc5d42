package main

import (
	"fmt"
	"os"

	"github.com/dwalsh-mfg/barcode-verifier/cmd/verifierd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
