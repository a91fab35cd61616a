package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ghalamif/machinelink"
)

func main() {
	flow, err := machinelink.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, batches, closeBatches := machinelink.NewChannelSink("fanout", 32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fanoutWorker("ingest", batches)
	}()

	if err := flow.Run(ctx, machinelink.StreamOutSink(sink)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
	closeBatches()
	wg.Wait()
}

func fanoutWorker(name string, batches <-chan []machinelink.Sample) {
	for batch := range batches {
		fmt.Printf("[%s] %d samples %s..%s\n", name, len(batch),
			batch[0].Timestamp.Format(time.RFC3339Nano),
			batch[len(batch)-1].Timestamp.Format(time.RFC3339Nano))
	}
}
