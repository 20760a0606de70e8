// cmd/catalog/main.go
package main

import (
	"context"
	"log"

	"libradesk/internal/bootstrap"
	"libradesk/internal/catalog"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "catalog", "8081")
	if err != nil {
		log.Fatalf("Failed to start catalog service: %v", err)
	}
	defer app.Close(ctx)

	if err := app.OpenDB(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	router := app.Router()
	catalog.NewHandler(catalog.NewService(app.Events, app.DB)).Routes(router)

	if err := app.Serve(ctx, router); err != nil {
		app.Logger.Error("catalog service stopped", "error", err)
	}
}
