// Package main is the totpkeeper command: it stores TOTP secrets locally
// and prints the current one-time codes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinyakov/totpkeeper/internal/cli"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.NewApp(version, buildDate).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
