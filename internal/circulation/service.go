// internal/circulation/service.go
package circulation

import (
	"context"

	"libradesk/internal/lifecycle"
)

// Service defines the interface for the circulation service.
type Service interface {
	CreateTransaction(ctx context.Context, memberID, articleID string, typ Type, date lifecycle.Date) (*Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, memberID string) ([]Transaction, error)
	SubmitTransaction(ctx context.Context, id string) (*Transaction, error)
	CancelTransaction(ctx context.Context, id string) (*Transaction, error)
	CheckIssueLimit(ctx context.Context, id string) error
}
