package main

import (
	"os"

	"github.com/dealgraph/dealgraph/cmd/dealgraph"
)

func main() {
	if err := dealgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
