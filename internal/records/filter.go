package records

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// Cond is a single column predicate.
type Cond = exp.Expression

// Filter is a conjunction of conditions. An empty Filter matches every row.
type Filter []Cond

func Where(conds ...Cond) Filter { return Filter(conds) }

func Eq(column string, value any) Cond { return goqu.C(column).Eq(value) }
func Lt(column string, value any) Cond { return goqu.C(column).Lt(value) }
func Gt(column string, value any) Cond { return goqu.C(column).Gt(value) }

// Like matches column case-insensitively against a substring.
func Like(column, substring string) Cond {
	return goqu.Func("LOWER", goqu.C(column)).Like("%" + strings.ToLower(substring) + "%")
}

func (f Filter) expression() exp.Expression {
	return goqu.And(f...)
}
