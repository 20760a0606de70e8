// internal/circulation/domain.go
package circulation

import (
	"fmt"

	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
)

// Type is the kind of library transaction.
type Type string

const (
	Issue  Type = "issue"
	Return Type = "return"
)

// Transaction records an article leaving or coming back to the library.
type Transaction struct {
	ID        string              `json:"id" db:"id"`
	MemberID  string              `json:"member_id" db:"member_id"`
	ArticleID string              `json:"article_id" db:"article_id"`
	Type      Type                `json:"type" db:"type"`
	Date      lifecycle.Date      `json:"date" db:"date"`
	Status    lifecycle.DocStatus `json:"docstatus" db:"docstatus"`
}

func (t Transaction) RowID() string                  { return t.ID }
func (t Transaction) DocStatus() lifecycle.DocStatus { return t.Status }

func (t Transaction) WithDocStatus(s lifecycle.DocStatus) Transaction {
	t.Status = s
	return t
}

// LockKeys covers the article being moved, the member's memberships
// and the member's issued articles.
func (t Transaction) LockKeys() []string {
	return []string{
		"article:" + t.ArticleID,
		"membership:" + t.MemberID,
		"member:" + t.MemberID,
	}
}

func (t Transaction) Record() map[string]any {
	return map[string]any{
		"member_id":  t.MemberID,
		"article_id": t.ArticleID,
		"type":       t.Type,
		"date":       t.Date,
		"docstatus":  t.Status,
	}
}

func TransactionsTable(h records.Handle) *records.Table[Transaction] {
	return records.NewTable[Transaction](h, "transactions")
}

// MembershipError rejects a transaction dated outside every active membership of the member.
type MembershipError struct {
	MemberID string
	Date     lifecycle.Date
}

func (e *MembershipError) Error() string {
	return "The member does not have a valid membership"
}

func (e *MembershipError) Is(target error) bool {
	return target == lifecycle.ErrRejected
}

// LimitError rejects an issue once the member holds the maximum number of articles.
type LimitError struct {
	MemberID string
	Max      int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("The maximum number of articles that can be issued is %d", e.Max)
}

func (e *LimitError) Is(target error) bool {
	return target == lifecycle.ErrRejected
}
