package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"churn/config"
	"churn/scoring"
	"churn/session"
)

func run() int {
	cfg := config.MustParse(os.Args[1:])
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// cancelled runs still release the session before exiting
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return scoring.Main(ctx, cfg, session.CreateFromArgs, os.Stdout)
}

func main() {
	os.Exit(run())
}
