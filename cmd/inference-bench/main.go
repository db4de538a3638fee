package main

import (
	"fmt"
	"os"

	"github.com/inference-bench/inference-bench/cmd/inference-bench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
