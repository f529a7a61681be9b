package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"prepd/services/agent"
)

func main() {
	configPath := flag.String("config", agent.DefaultConfigPath, "path to agent configuration file")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	logger := log.New(os.Stdout, "prep-agent: ", log.LstdFlags)

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	svc, err := agent.NewService(cfg, nil, nil, logger)
	if err != nil {
		logger.Fatalf("failed to initialize service: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := svc.RunOnce(ctx); err != nil {
			logger.Fatalf("run failed: %v", err)
		}
		return
	}

	if err := agent.RunService(ctx, svc); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("service exited with error: %v", err)
	}
}
