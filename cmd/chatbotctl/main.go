package main

import (
	"os"

	"github.com/amitsahu0611/chatbot-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
