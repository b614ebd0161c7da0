// Package main is the entry point for the expensectl CLI.
package main

import (
	"os"

	"github.com/garyjia/expense-approval/cmd/expensectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
