// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"libradesk/internal/eventstore"
	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
)

var kind = lifecycle.Kind{Name: "membership", EventPrefix: "Membership", Table: "memberships"}

// service implements the Service interface.
type service struct {
	eventStore  *eventstore.EventStore
	db          *records.DB
	manager     *lifecycle.Manager[Membership]
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance. A nil limiter disables rate limiting.
func NewService(db *records.DB, cfg lifecycle.Config, limiter *rate.Limiter) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &service{
		eventStore:  cfg.Events,
		db:          db,
		manager:     lifecycle.NewManager[Membership](db, kind, submitHook, cfg),
		rateLimiter: limiter,
	}
}

// RegisterMember creates a new member.
func (s *service) RegisterMember(ctx context.Context, fullName, email, phone string) (*Member, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", lifecycle.ErrInvalidDocument)
	}

	member := Member{
		ID:       uuid.NewString(),
		FullName: fullName,
		Email:    email,
		Phone:    phone,
	}

	err := s.db.InTx(ctx, func(tx *records.Tx) error {
		if err := MembersTable(tx).Save(ctx, member); err != nil {
			return err
		}
		if s.eventStore == nil {
			return nil
		}
		event, err := eventstore.NewEvent("MemberRegistered", MemberRegisteredEvent{
			ID:       member.ID,
			FullName: member.FullName,
			Email:    member.Email,
		})
		if err != nil {
			return err
		}
		return s.eventStore.AppendEvents(ctx, tx, member.ID, "member", 0, []eventstore.Event{event})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register member: %w", err)
	}

	return &member, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id string) (*Member, error) {
	member, err := MembersTable(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateMembership saves a draft membership starting at fromDate.
func (s *service) CreateMembership(ctx context.Context, memberID string, fromDate lifecycle.Date) (*Membership, error) {
	if fromDate.IsZero() {
		return nil, fmt.Errorf("%w: from_date is required", lifecycle.ErrInvalidDocument)
	}
	if _, err := s.GetMember(ctx, memberID); err != nil {
		return nil, err
	}

	m := Membership{
		ID:       uuid.NewString(),
		MemberID: memberID,
		FromDate: fromDate,
		Status:   lifecycle.StatusDraft,
	}
	if err := MembershipsTable(s.db).Save(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	return &m, nil
}

func (s *service) GetMembership(ctx context.Context, id string) (*Membership, error) {
	m, err := MembershipsTable(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemberships returns a member's memberships in every state.
func (s *service) ListMemberships(ctx context.Context, memberID string) ([]Membership, error) {
	if _, err := s.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return MembershipsTable(s.db).List(ctx, records.Where(records.Eq("member_id", memberID)))
}

// SubmitMembership validates and activates a draft membership.
func (s *service) SubmitMembership(ctx context.Context, id string) (*Membership, error) {
	if !s.rateLimiter.Allow() {
		return nil, lifecycle.ErrRateLimited
	}

	m, err := s.manager.Submit(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *service) CancelMembership(ctx context.Context, id string) (*Membership, error) {
	m, err := s.manager.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
