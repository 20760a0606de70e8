package circulation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/catalog"
	"libradesk/internal/eventstore"
	"libradesk/internal/lifecycle"
	"libradesk/internal/membership"
	"libradesk/internal/records"
	"libradesk/internal/settings"
)

// Validator enforces the issue and return rules.
type Validator struct {
	memberships  records.Store[membership.Membership]
	transactions records.Store[Transaction]
	articles     records.Store[catalog.Article]
	tracer       trace.Tracer
}

func NewValidator(memberships records.Store[membership.Membership], transactions records.Store[Transaction], articles records.Store[catalog.Article]) *Validator {
	return &Validator{
		memberships:  memberships,
		transactions: transactions,
		articles:     articles,
		tracer:       otel.Tracer("libradesk/circulation"),
	}
}

// Activate validates txn and moves its article to the resulting availability.
// Checks run in order: membership, then article state; the article is written
// only when both pass. Transactions of other types are accepted unchanged and
// return the zero Article.
func (v *Validator) Activate(ctx context.Context, txn Transaction) (catalog.Article, error) {
	var event catalog.Event
	switch txn.Type {
	case Issue:
		event = catalog.EventIssue
	case Return:
		event = catalog.EventReturn
	default:
		return catalog.Article{}, nil
	}

	ctx, span := v.tracer.Start(ctx, "circulation.validate",
		trace.WithAttributes(
			attribute.String("transaction.type", string(txn.Type)),
			attribute.String("member.id", txn.MemberID),
			attribute.String("article.id", txn.ArticleID),
		),
	)
	defer span.End()

	if err := v.ValidateMembership(ctx, txn); err != nil {
		return catalog.Article{}, err
	}

	article, err := v.articles.Get(ctx, txn.ArticleID)
	if err != nil {
		return catalog.Article{}, fmt.Errorf("failed to get article: %w", err)
	}

	updated, err := catalog.Apply(ctx, article, event)
	if err != nil {
		return article, err
	}

	if err := v.articles.Save(ctx, updated); err != nil {
		return article, fmt.Errorf("failed to update article: %w", err)
	}
	return updated, nil
}

// ValidateMembership requires an active membership with from_date < date < to_date.
func (v *Validator) ValidateMembership(ctx context.Context, txn Transaction) error {
	ok, err := v.memberships.Exists(ctx, records.Where(
		records.Eq("member_id", txn.MemberID),
		records.Eq("docstatus", lifecycle.StatusActive),
		records.Lt("from_date", txn.Date),
		records.Gt("to_date", txn.Date),
	))
	if err != nil {
		return fmt.Errorf("failed to check memberships: %w", err)
	}
	if !ok {
		return &MembershipError{MemberID: txn.MemberID, Date: txn.Date}
	}
	return nil
}

// ValidateMaximumLimit fails when the member already has s.MaxArticles active
// issue transactions. A nil MaxArticles means no limit is configured; an
// explicit 0 rejects every check.
func (v *Validator) ValidateMaximumLimit(ctx context.Context, txn Transaction, s settings.Settings) error {
	if s.MaxArticles == nil {
		return nil
	}
	limit := *s.MaxArticles

	count, err := v.transactions.Count(ctx, records.Where(
		records.Eq("member_id", txn.MemberID),
		records.Eq("type", Issue),
		records.Eq("docstatus", lifecycle.StatusActive),
	))
	if err != nil {
		return fmt.Errorf("failed to count issued articles: %w", err)
	}
	if count >= limit {
		return &LimitError{MemberID: txn.MemberID, Max: limit}
	}
	return nil
}

func validatorOn(tx *records.Tx) *Validator {
	return NewValidator(
		membership.MembershipsTable(tx),
		TransactionsTable(tx),
		catalog.ArticlesTable(tx).ForUpdate(),
	)
}

type submitHook struct {
	events *eventstore.EventStore
}

// BeforeSubmit activates txn inside the submit transaction and records the
// article's new availability on the article's event stream.
//
// TODO: ValidateMaximumLimit is only reachable through CheckIssueLimit; decide
// whether issue submissions should enforce it here.
func (h submitHook) BeforeSubmit(ctx context.Context, tx *records.Tx, txn Transaction) (Transaction, error) {
	article, err := validatorOn(tx).Activate(ctx, txn)
	if err != nil {
		return txn, err
	}
	if h.events == nil || article.ID == "" {
		return txn, nil
	}

	eventType := "ArticleIssued"
	if txn.Type == Return {
		eventType = "ArticleReturned"
	}
	event, err := eventstore.NewEvent(eventType, catalog.AvailabilityChangedEvent{
		ArticleID:     article.ID,
		TransactionID: txn.ID,
		MemberID:      txn.MemberID,
		Status:        article.Status,
	})
	if err != nil {
		return txn, err
	}

	version, err := h.events.GetCurrentVersion(ctx, tx, article.ID)
	if err != nil {
		return txn, err
	}
	if err := h.events.AppendEvents(ctx, tx, article.ID, catalog.AggregateType, version, []eventstore.Event{event}); err != nil {
		return txn, fmt.Errorf("failed to record article availability: %w", err)
	}
	return txn, nil
}
