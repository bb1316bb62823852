package main

import (
	"fmt"
	"os"

	"github.com/tinoosan/ghusers/cmd/ghusers/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
