// Command fiatshamir manages a Fiat-Shamir identification deployment: it creates the modulus,
// registers users and runs identification sessions, either locally or over TCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-errors/errors"

	"github.com/privacybydesign/fiatshamir/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, "fiatshamir:", err)
		}
		stop()
		os.Exit(1)
	}
}
