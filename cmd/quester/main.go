package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	questercmd "github.com/EV081/mysto-mobile-sub000/internal/cmd/quester"
)

func main() {
	cfg, err := questercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[QUESTER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := questercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
