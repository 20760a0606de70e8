// cmd/chaos/main.go
package main

import (
	"context"
	"log"
	"os"
	"time"

	"libradesk/internal/bootstrap"
	"libradesk/internal/chaos"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "chaos", "")
	if err != nil {
		log.Fatalf("Failed to start chaos runner: %v", err)
	}

	if err := app.OpenDB(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	engine := chaos.NewEngine(app.Logger)
	engine.RegisterExperiments(app.DB, app.Lifecycle(), chaos.Options{Concurrency: app.Config.ChaosConcurrency})

	gameDay := chaos.GameDay{
		Name:      "Weekly Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     5 * time.Second,
	}

	err = engine.ExecuteGameDay(ctx, gameDay)
	if closeErr := app.Close(ctx); closeErr != nil {
		app.Logger.Warn("shutdown incomplete", "error", closeErr)
	}
	if err != nil {
		app.Logger.Error("chaos game day failed", "error", err)
		os.Exit(1)
	}
}
