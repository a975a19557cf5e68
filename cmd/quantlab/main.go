// Command quantlab is a thin CLI wiring flags to the library calls the
// ingestion runner, access service, and registry expose. It carries no
// business logic of its own: every rule about data quality, pricing, risk,
// or stress lives in internal/.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
