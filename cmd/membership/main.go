// cmd/membership/main.go
package main

import (
	"context"
	"log"

	"libradesk/internal/bootstrap"
	"libradesk/internal/membership"
	"libradesk/internal/settings"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "membership", "8083")
	if err != nil {
		log.Fatalf("Failed to start membership service: %v", err)
	}
	defer app.Close(ctx)

	if err := app.OpenDB(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	svc := membership.NewService(app.DB, app.Lifecycle(), app.Config.SubmitLimiter())

	router := app.Router()
	membership.NewHandler(svc).Routes(router)
	settings.NewHandler(settings.NewSQLStore(app.DB)).Routes(router)

	if err := app.Serve(ctx, router); err != nil {
		app.Logger.Error("membership service stopped", "error", err)
	}
}
