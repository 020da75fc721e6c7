// Package main implements scanbench-gen, which writes synthetic particle
// partitions for scanbench to scan.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
