// Package main provides the avs-device CLI.
//
// Usage:
//
//	avs-device [flags] <command> [args]
//
// Commands:
//
//	serve        - run the simulator REST and websocket server
//	say          - send one utterance and print the turn result
//	user-event   - send an APL UserEvent
//	new-session  - start a new skill session
//	locale       - change the device locale
//	ping         - check the AVS session
//	console      - interactive utterance REPL
package main

import (
	"fmt"
	"os"

	"github.com/saker-ai/avs-device/cmd/avs-device/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
