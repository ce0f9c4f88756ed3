// Command avwrap probes, remuxes and transcodes media through the registered
// engines.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
