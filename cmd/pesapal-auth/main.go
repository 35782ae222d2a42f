// Command pesapal-auth serves Pesapal bearer tokens to frontends over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/pesapal-auth-proxy/cmd/pesapal-auth/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.Execute(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}
