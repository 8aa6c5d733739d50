package main

import (
	"os"

	"github.com/argus-mc/argus/pkg/app"
	"github.com/argus-mc/argus/pkg/log"
)

// main is the entry point of the argus gatekeeper daemon.
func main() {
	if err := app.Run(); err != nil {
		log.Errorf("Fatal: %v", err)
		os.Exit(1)
	}
}
