package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/agni/internal/app"
	"github.com/efebarandurmaz/agni/internal/config"
	"github.com/efebarandurmaz/agni/internal/server"
	temporalmod "github.com/efebarandurmaz/agni/internal/temporal"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.NewLogger(os.Stderr, cfg.Log)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	if a.Generator == nil {
		log.Fatalf("worker: %v", app.ErrNoGenerator)
	}

	gs := server.NewGracefulServer(
		&server.HealthConfig{Version: app.Version, Addr: cfg.Server.Addr, Logger: logger},
		&server.ShutdownConfig{Timeout: 30 * time.Second, Logger: logger},
	)
	for _, hook := range a.ShutdownHooks() {
		gs.Shutdown.Register(hook)
	}
	gs.Health.Handle("/metrics", a.Metrics.Handler())
	gs.Health.SetReadinessProbe(server.IndexReadiness(a.Index.Count))
	gs.Health.RegisterCheck("index", server.IndexHealthChecker(cfg.Vector.Backend, a.Index.Count))
	for name, ping := range a.HealthChecks() {
		gs.Health.RegisterCheck(name, server.DatabaseHealthChecker(name, ping))
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	gs.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	// Registered after the app hooks; the client closes once the worker has stopped.
	gs.RegisterHook("temporal-client", 30, func(context.Context) error {
		c.Close()
		return nil
	})

	if err := gs.Start(cfg.Server.Addr); err != nil {
		log.Fatalf("health server: %v", err)
	}

	report, err := a.Loader.Load(ctx)
	if err != nil {
		log.Fatalf("knowledge base: %v", err)
	}
	if err := a.Graph.StoreFoods(ctx, a.Corpus.Foods); err != nil {
		log.Fatalf("food graph: %v", err)
	}
	logger.Info("knowledge base ready", "documents", report.Documents, "skipped", report.Skipped)

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, &temporalmod.Activities{
		Retriever: a.Retriever,
		Stats:     a.Stats,
		Generator: a.Generator,
		Metrics:   a.Metrics,
	})
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	gs.Shutdown.Register(server.TemporalWorkerShutdownHook(w.Stop))

	gs.MarkReady()
	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	gs.Wait()
	fmt.Println("Worker stopped")
}
