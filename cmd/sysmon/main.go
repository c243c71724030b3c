package main

import (
	"context"
	"fmt"
	"os"

	"sysmon/internal/config"
	"sysmon/internal/engine"
	"sysmon/internal/logging"
	"sysmon/internal/platform"
	"sysmon/internal/sampler"
	"sysmon/internal/ui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.FromFlags(args)
	if err != nil {
		return err
	}
	log := logging.Setup()

	src := platform.New()
	smp := sampler.New(src, cfg.TempUnit, log)
	eng := engine.New(cfg, smp, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	if cfg.Filter != "" {
		eng.ApplyIntent(engine.FilterChange{Filter: cfg.Filter})
	}

	if err := ui.Run(cfg, eng, cancel); err != nil {
		return err
	}

	// Let the in-flight tick publish before exiting so nothing ever
	// observes a torn snapshot.
	cancel()
	<-eng.Done()
	return nil
}
