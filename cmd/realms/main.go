// Package main provides the realm tree administration CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/realmtree/internal/platform/config"

	realmscmd "github.com/louisbranch/realmtree/internal/cmd/realms"
)

func main() {
	log.SetPrefix("[REALMS] ")
	cfg, err := realmscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.ExitWithCode(config.ExitUsage, "Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := realmscmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, realmscmd.ErrUsage) {
			config.ExitWithCode(config.ExitUsage, "Error: %v", err)
		}
		config.Exitf("Error: %v", err)
	}
}
