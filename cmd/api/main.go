// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"

	"libradesk/internal/bootstrap"
	"libradesk/internal/config"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "api", "8080")
	if err != nil {
		log.Fatalf("Failed to start API gateway: %v", err)
	}
	defer app.Close(ctx)

	router := app.Router()
	if err := mountServices(router, app.Config, defaultBreakerConfig()); err != nil {
		log.Fatalf("Failed to configure API gateway: %v", err)
	}

	if err := app.Serve(ctx, router); err != nil {
		app.Logger.Error("API gateway stopped", "error", err)
	}
}

// mountServices proxies /api/v1/<service>/... to each backing service with the
// prefix stripped. Each upstream gets its own circuit breaker.
func mountServices(r chi.Router, cfg config.Config, breaker breakerConfig) error {
	upstreams := []struct {
		prefix string
		target string
	}{
		{"/api/v1/catalog", cfg.CatalogServiceURL},
		{"/api/v1/circulation", cfg.CirculationServiceURL},
		{"/api/v1/membership", cfg.MembershipServiceURL},
	}

	for _, u := range upstreams {
		target, err := url.Parse(u.target)
		if err != nil {
			return fmt.Errorf("invalid upstream URL for %s: %w", u.prefix, err)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.Transport = newBreakerTransport(u.prefix, http.DefaultTransport, breaker)
		proxy.ErrorHandler = proxyErrorHandler
		r.Handle(u.prefix+"/*", http.StripPrefix(u.prefix, proxy))
	}
	return nil
}
