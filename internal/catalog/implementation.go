// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"libradesk/internal/eventstore"
	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
)

// AggregateType is the event store aggregate for articles.
const AggregateType = "article"

// service implements the Service interface.
type service struct {
	eventStore *eventstore.EventStore
	db         *records.DB
}

// NewService creates a new catalog service instance.
func NewService(es *eventstore.EventStore, db *records.DB) Service {
	return &service{
		eventStore: es,
		db:         db,
	}
}

// AddArticle catalogues a new, available article.
func (s *service) AddArticle(ctx context.Context, name, author, isbn, publisher string) (*Article, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: article name is required", lifecycle.ErrInvalidDocument)
	}

	article := Article{
		ID:        uuid.NewString(),
		Name:      name,
		Author:    author,
		ISBN:      isbn,
		Publisher: publisher,
		Status:    Available,
	}

	event, err := eventstore.NewEvent("ArticleAdded", ArticleAddedEvent{
		ID:     article.ID,
		Name:   article.Name,
		Author: article.Author,
		ISBN:   article.ISBN,
	})
	if err != nil {
		return nil, err
	}

	err = s.db.InTx(ctx, func(tx *records.Tx) error {
		if err := ArticlesTable(tx).Save(ctx, article); err != nil {
			return err
		}
		return s.eventStore.AppendEvents(ctx, tx, article.ID, AggregateType, 0, []eventstore.Event{event})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add article: %w", err)
	}

	return &article, nil
}

// GetArticle retrieves an article by its ID.
func (s *service) GetArticle(ctx context.Context, id string) (*Article, error) {
	article, err := ArticlesTable(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// ListArticles returns every article, or only those with the given availability.
func (s *service) ListArticles(ctx context.Context, status Availability) ([]Article, error) {
	var filter records.Filter
	switch status {
	case "":
	case Available, Issued:
		filter = records.Where(records.Eq("status", status))
	default:
		return nil, fmt.Errorf("%w: unknown availability %q", lifecycle.ErrInvalidDocument, status)
	}
	return ArticlesTable(s.db).List(ctx, filter)
}

// Search finds articles whose name or author contains query.
func (s *service) Search(ctx context.Context, query string) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: missing search query", lifecycle.ErrInvalidDocument)
	}

	byName, err := ArticlesTable(s.db).List(ctx, records.Where(records.Like("name", query)))
	if err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}
	byAuthor, err := ArticlesTable(s.db).List(ctx, records.Where(records.Like("author", query)))
	if err != nil {
		return nil, fmt.Errorf("database search failed: %w", err)
	}

	seen := make(map[string]bool, len(byName))
	results := make([]Article, 0, len(byName)+len(byAuthor))
	for _, a := range append(byName, byAuthor...) {
		if !seen[a.ID] {
			seen[a.ID] = true
			results = append(results, a)
		}
	}
	return results, nil
}

// History returns the article's events, oldest first.
func (s *service) History(ctx context.Context, id string) ([]eventstore.Event, error) {
	if _, err := s.GetArticle(ctx, id); err != nil {
		return nil, err
	}

	events, err := s.eventStore.LoadEvents(ctx, s.db, id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load article history: %w", err)
	}
	return events, nil
}
