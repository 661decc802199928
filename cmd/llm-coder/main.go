package main

import (
	"os"

	"github.com/igtm/llm-coder/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
