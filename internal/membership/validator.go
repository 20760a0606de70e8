package membership

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
	"libradesk/internal/settings"
)

// Validator enforces the membership submission rules.
type Validator struct {
	memberships records.Store[Membership]
	tracer      trace.Tracer
}

func NewValidator(memberships records.Store[Membership]) *Validator {
	return &Validator{
		memberships: memberships,
		tracer:      otel.Tracer("libradesk/membership"),
	}
}

// Activate checks that candidate does not start before an active membership
// of the same member ends, and returns the end date it should be given.
func (v *Validator) Activate(ctx context.Context, candidate Membership, s settings.Settings) (lifecycle.Date, error) {
	ctx, span := v.tracer.Start(ctx, "membership.validate",
		trace.WithAttributes(
			attribute.String("member.id", candidate.MemberID),
			attribute.String("from.date", candidate.FromDate.String()),
		),
	)
	defer span.End()

	overlaps, err := v.memberships.Exists(ctx, records.Where(
		records.Eq("member_id", candidate.MemberID),
		records.Eq("docstatus", lifecycle.StatusActive),
		records.Gt("to_date", candidate.FromDate),
	))
	if err != nil {
		return lifecycle.Date{}, fmt.Errorf("failed to check active memberships: %w", err)
	}
	if overlaps {
		span.SetAttributes(attribute.Bool("overlap.detected", true))
		return lifecycle.Date{}, &OverlapError{MemberID: candidate.MemberID}
	}

	return candidate.FromDate.AddDays(s.LoanPeriodDays()), nil
}

// submitHook runs the validator against the submit transaction and stamps the end date.
var submitHook = lifecycle.HookFunc[Membership](func(ctx context.Context, tx *records.Tx, m Membership) (Membership, error) {
	s, err := settings.Load(ctx, settings.NewSQLStore(tx))
	if err != nil {
		return m, fmt.Errorf("failed to load library settings: %w", err)
	}

	toDate, err := NewValidator(MembershipsTable(tx)).Activate(ctx, m, s)
	if err != nil {
		return m, err
	}

	m.ToDate = toDate
	return m, nil
})
