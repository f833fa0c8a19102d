// Command docqa is the entry point for the document question-answering
// engine. It provides a CLI (via Cobra) for ingesting documents and asking
// questions, plus an optional HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/docqa-ai/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
