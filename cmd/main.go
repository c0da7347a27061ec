package main

import (
	"os"

	"kb-diagnosis-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
