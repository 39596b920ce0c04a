package main

import (
	"os"

	"github.com/verifiable-ai/onchainqa/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
