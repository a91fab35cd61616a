package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/machinelink"
)

func main() {
	flow, err := machinelink.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime exited: %v", err)
	}
}
