// Package main implements the scanbench binary: it scans every partition
// file in the given directories in parallel with a filter predicate and
// reports rows, proxy-level reads and block device counter deltas.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
