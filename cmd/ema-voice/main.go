// Command ema-voice runs a spoken assistant on the default audio devices:
// it listens continuously, answers through a language model and can be
// interrupted with a stop command while it speaks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
