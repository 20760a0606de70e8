// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"libradesk/internal/catalog"
	"libradesk/internal/lifecycle"
	"libradesk/internal/membership"
	"libradesk/internal/records"
	"libradesk/internal/settings"
)

var kind = lifecycle.Kind{Name: "transaction", EventPrefix: "Transaction", Table: "transactions"}

// service implements the Service interface.
type service struct {
	db          *records.DB
	manager     *lifecycle.Manager[Transaction]
	rateLimiter *rate.Limiter
}

// NewService creates a new circulation service instance. A nil limiter disables rate limiting.
func NewService(db *records.DB, cfg lifecycle.Config, limiter *rate.Limiter) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &service{
		db:          db,
		manager:     lifecycle.NewManager[Transaction](db, kind, submitHook{events: cfg.Events}, cfg),
		rateLimiter: limiter,
	}
}

// CreateTransaction saves a draft transaction. A zero date means today.
func (s *service) CreateTransaction(ctx context.Context, memberID, articleID string, typ Type, date lifecycle.Date) (*Transaction, error) {
	if typ != Issue && typ != Return {
		return nil, fmt.Errorf("%w: unknown transaction type %q", lifecycle.ErrInvalidDocument, typ)
	}
	if date.IsZero() {
		date = lifecycle.Today()
	}

	if _, err := membership.MembersTable(s.db).Get(ctx, memberID); err != nil {
		return nil, err
	}
	if _, err := catalog.ArticlesTable(s.db).Get(ctx, articleID); err != nil {
		return nil, err
	}

	txn := Transaction{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		ArticleID: articleID,
		Type:      typ,
		Date:      date,
		Status:    lifecycle.StatusDraft,
	}
	if err := TransactionsTable(s.db).Save(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &txn, nil
}

func (s *service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	txn, err := TransactionsTable(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListTransactions returns the member's transactions in every state.
func (s *service) ListTransactions(ctx context.Context, memberID string) ([]Transaction, error) {
	return TransactionsTable(s.db).List(ctx, records.Where(records.Eq("member_id", memberID)))
}

// SubmitTransaction validates a draft and applies it to its article.
func (s *service) SubmitTransaction(ctx context.Context, id string) (*Transaction, error) {
	if !s.rateLimiter.Allow() {
		return nil, lifecycle.ErrRateLimited
	}

	txn, err := s.manager.Submit(ctx, id)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// CancelTransaction cancels an active transaction. The article keeps its availability.
func (s *service) CancelTransaction(ctx context.Context, id string) (*Transaction, error) {
	txn, err := s.manager.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// CheckIssueLimit runs the maximum-issue check for a transaction against the current settings.
func (s *service) CheckIssueLimit(ctx context.Context, id string) error {
	txn, err := TransactionsTable(s.db).Get(ctx, id)
	if err != nil {
		return err
	}

	cfg, err := settings.Load(ctx, settings.NewSQLStore(s.db))
	if err != nil {
		return fmt.Errorf("failed to load library settings: %w", err)
	}

	v := NewValidator(membership.MembershipsTable(s.db), TransactionsTable(s.db), catalog.ArticlesTable(s.db))
	return v.ValidateMaximumLimit(ctx, txn, cfg)
}
