// internal/membership/domain.go
package membership

import (
	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
)

// Member represents a library member.
type Member struct {
	ID       string `json:"id" db:"id"`
	FullName string `json:"full_name" db:"full_name"`
	Email    string `json:"email,omitempty" db:"email"`
	Phone    string `json:"phone,omitempty" db:"phone"`
}

func (m Member) RowID() string { return m.ID }

func (m Member) Record() map[string]any {
	return map[string]any{
		"full_name": m.FullName,
		"email":     m.Email,
		"phone":     m.Phone,
	}
}

// Membership is a member's subscription over a date range. ToDate is empty
// until the membership is submitted.
type Membership struct {
	ID       string              `json:"id" db:"id"`
	MemberID string              `json:"member_id" db:"member_id"`
	FromDate lifecycle.Date      `json:"from_date" db:"from_date"`
	ToDate   lifecycle.Date      `json:"to_date" db:"to_date"`
	Status   lifecycle.DocStatus `json:"docstatus" db:"docstatus"`
}

func (m Membership) RowID() string                  { return m.ID }
func (m Membership) DocStatus() lifecycle.DocStatus { return m.Status }

func (m Membership) WithDocStatus(s lifecycle.DocStatus) Membership {
	m.Status = s
	return m
}

// LockKeys serializes submissions per member so overlap checks see each other.
func (m Membership) LockKeys() []string {
	return []string{"membership:" + m.MemberID}
}

func (m Membership) Record() map[string]any {
	return map[string]any{
		"member_id": m.MemberID,
		"from_date": m.FromDate,
		"to_date":   m.ToDate,
		"docstatus": m.Status,
	}
}

func MembersTable(h records.Handle) *records.Table[Member] {
	return records.NewTable[Member](h, "members")
}

func MembershipsTable(h records.Handle) *records.Table[Membership] {
	return records.NewTable[Membership](h, "memberships")
}

// OverlapError rejects a membership that starts before an active one ends.
type OverlapError struct {
	MemberID string
}

func (e *OverlapError) Error() string {
	return "There is an active membership for this member"
}

func (e *OverlapError) Is(target error) bool {
	return target == lifecycle.ErrRejected
}

// MemberRegisteredEvent is published when a new member registers.
type MemberRegisteredEvent struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
