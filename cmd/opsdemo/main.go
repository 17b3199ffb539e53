// Command opsdemo runs the demo operations service and its companion
// one-shot commands.
package main

import (
	"os"

	"opsdemo/cmd/opsdemo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
