package main

import (
	"os"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
