package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ghalamif/machinelink/pkg/machinelink"
)

func main() {
	flow, err := machinelink.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callback := func(bucket string, batch []machinelink.Sample) error {
		for _, sample := range batch {
			fmt.Printf("%s %s/%s tags=%v fields=%v\n",
				sample.Timestamp.Format(time.RFC3339Nano),
				bucket,
				sample.Measurement,
				sample.Tags,
				sample.Fields,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, machinelink.StreamOutCallback("stdout", callback)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}
