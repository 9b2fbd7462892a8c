package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-record-catalog/cmd/catalog/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
