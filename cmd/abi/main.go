package main

import (
	"os"

	"github.com/aibubble/analytics/backend/cmd/abi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
