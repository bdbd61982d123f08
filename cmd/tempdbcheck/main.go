package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/senbaris/tempdbcheck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, cli.ErrViolations) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
