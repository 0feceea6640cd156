package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Stderr))
}

// run executes the CLI and maps the outcome to an exit status. A cancelled
// context (Ctrl-C during send or logs -f) exits non-zero without a message.
func run(stderr io.Writer) int {
	err := newRootCommand().ExecuteContext(context.Background())
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 1
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
