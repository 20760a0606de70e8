// cmd/circulation/main.go
package main

import (
	"context"
	"log"

	"libradesk/internal/bootstrap"
	"libradesk/internal/circulation"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "circulation", "8082")
	if err != nil {
		log.Fatalf("Failed to start circulation service: %v", err)
	}
	defer app.Close(ctx)

	if err := app.OpenDB(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	svc := circulation.NewService(app.DB, app.Lifecycle(), app.Config.SubmitLimiter())

	router := app.Router()
	circulation.NewHandler(svc).Routes(router)

	if err := app.Serve(ctx, router); err != nil {
		app.Logger.Error("circulation service stopped", "error", err)
	}
}
