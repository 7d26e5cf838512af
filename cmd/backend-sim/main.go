package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	backendsimcmd "github.com/EV081/mysto-mobile-sub000/internal/cmd/backendsim"
)

func main() {
	cfg, err := backendsimcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[BACKEND-SIM] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := backendsimcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
