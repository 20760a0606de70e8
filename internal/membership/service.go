// internal/membership/service.go
package membership

import (
	"context"

	"libradesk/internal/lifecycle"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterMember(ctx context.Context, fullName, email, phone string) (*Member, error)
	GetMember(ctx context.Context, id string) (*Member, error)
	CreateMembership(ctx context.Context, memberID string, fromDate lifecycle.Date) (*Membership, error)
	GetMembership(ctx context.Context, id string) (*Membership, error)
	ListMemberships(ctx context.Context, memberID string) ([]Membership, error)
	SubmitMembership(ctx context.Context, id string) (*Membership, error)
	CancelMembership(ctx context.Context, id string) (*Membership, error)
}
