// rawtwitch - a Twitch chat client speaking raw IRC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rawtwitch/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rawtwitch: %v\n", err)
		os.Exit(1)
	}
}
