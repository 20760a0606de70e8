// internal/catalog/domain.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
	"libradesk/internal/statemachine"
)

// Availability is whether an article is on the shelf.
type Availability string

const (
	Available Availability = "available"
	Issued    Availability = "issued"
)

// Event changes an article's availability.
type Event string

const (
	EventIssue  Event = "issue"
	EventReturn Event = "return"
)

// Transitions is the article availability cycle.
var Transitions = []statemachine.Transition[Availability, Event]{
	{Event: EventIssue, Src: Available, Dst: Issued},
	{Event: EventReturn, Src: Issued, Dst: Available},
}

var machine = statemachine.New(Transitions)

// Article represents a book or other library item.
type Article struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Author    string       `json:"author" db:"author"`
	ISBN      string       `json:"isbn" db:"isbn"`
	Publisher string       `json:"publisher,omitempty" db:"publisher"`
	Status    Availability `json:"status" db:"status"`
}

func (a Article) RowID() string { return a.ID }

func (a Article) Record() map[string]any {
	return map[string]any{
		"name":      a.Name,
		"author":    a.Author,
		"isbn":      a.ISBN,
		"publisher": a.Publisher,
		"status":    a.Status,
	}
}

// ArticlesTable returns the article store on h.
func ArticlesTable(h records.Handle) *records.Table[Article] {
	return records.NewTable[Article](h, "articles")
}

// StateError is returned when an article is not in a state that allows the operation.
type StateError struct {
	ArticleID string
	Current   Availability
	Event     Event
}

func (e *StateError) Error() string {
	switch e.Event {
	case EventIssue:
		return "This article is already issued"
	case EventReturn:
		return "This article cannot be returned as it is not issued"
	default:
		return fmt.Sprintf("This article cannot be %sd while %s", e.Event, e.Current)
	}
}

func (e *StateError) Is(target error) bool {
	return target == lifecycle.ErrRejected
}

// Apply returns a with its availability moved by event.
func Apply(ctx context.Context, a Article, event Event) (Article, error) {
	next, err := machine.Apply(ctx, a.Status, event)
	if err != nil {
		var trErr *statemachine.TransitionError
		if errors.As(err, &trErr) {
			return a, &StateError{ArticleID: a.ID, Current: a.Status, Event: event}
		}
		return a, err
	}
	a.Status = next
	return a, nil
}

// ArticleAddedEvent is published when a new article is catalogued.
type ArticleAddedEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// AvailabilityChangedEvent is published when a transaction issues or returns an article.
type AvailabilityChangedEvent struct {
	ArticleID     string       `json:"article_id"`
	TransactionID string       `json:"transaction_id"`
	MemberID      string       `json:"member_id"`
	Status        Availability `json:"status"`
}
