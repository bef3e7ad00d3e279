package main

import (
	"os"

	"github.com/akolanti/GoRAG/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
