// Command scribe is the offline-first sync client for scribepad notes.
//
// Notes are always written to the local store first; a background queue
// delivers them to the remote service whenever a session and connectivity
// allow. Run "scribe daemon" for continuous syncing or "scribe sync" for a
// one-shot pass.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
