package main

import (
	"github.com/BioHazard786/multiplay/cmd"
	"github.com/BioHazard786/multiplay/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
