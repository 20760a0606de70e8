// internal/catalog/service.go
package catalog

import (
	"context"

	"libradesk/internal/eventstore"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddArticle(ctx context.Context, name, author, isbn, publisher string) (*Article, error)
	GetArticle(ctx context.Context, id string) (*Article, error)
	ListArticles(ctx context.Context, status Availability) ([]Article, error)
	Search(ctx context.Context, query string) ([]Article, error)
	History(ctx context.Context, id string) ([]eventstore.Event, error)
}
