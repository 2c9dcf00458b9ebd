package costs

import "time"

// Constraint is the predicate on one string dimension: unconstrained,
// equal to one value, or equal to any of a set of values. Values are
// compared exactly, case-sensitive, no trimming.
type Constraint struct {
	kind   constraintKind
	value  string
	values map[string]struct{}
	order  []string
}

type constraintKind int

const (
	kindUnconstrained constraintKind = iota
	kindExact
	kindAnyOf
)

func Unconstrained() Constraint {
	return Constraint{kind: kindUnconstrained}
}

func Exact(v string) Constraint {
	return Constraint{kind: kindExact, value: v}
}

func AnyOf(vs []string) Constraint {
	set := make(map[string]struct{}, len(vs))
	order := make([]string, 0, len(vs))
	for _, v := range vs {
		if _, seen := set[v]; seen {
			continue
		}
		set[v] = struct{}{}
		order = append(order, v)
	}
	return Constraint{kind: kindAnyOf, values: set, order: order}
}

// IsUnconstrained reports whether the dimension is not filtered at all.
func (c Constraint) IsUnconstrained() bool {
	return c.kind == kindUnconstrained
}

// ExactValue returns the single accepted value, if the constraint is an
// exact match.
func (c Constraint) ExactValue() (string, bool) {
	return c.value, c.kind == kindExact
}

// AnyOfValues returns the accepted value set (in first-seen order), if
// the constraint is a match-any.
func (c Constraint) AnyOfValues() ([]string, bool) {
	return c.order, c.kind == kindAnyOf
}

// Match reports whether v satisfies the constraint.
func (c Constraint) Match(v string) bool {
	switch c.kind {
	case kindExact:
		return v == c.value
	case kindAnyOf:
		_, ok := c.values[v]
		return ok
	default:
		return true
	}
}

// FilterParams are the raw, already-validated request filters. Dates
// arrive parsed; the handler layer rejects malformed date strings before
// compilation, so compiling cannot fail.
type FilterParams struct {
	StartDate *time.Time
	EndDate   *time.Time
	Services  []string
	Regions   []string
	Accounts  []string
}

// Filter is the normalized predicate over cost records: an inclusive
// optional date interval ANDed with one constraint per dimension.
// Immutable once compiled; a record matches only if it satisfies every
// part that is present.
type Filter struct {
	startDate *time.Time
	endDate   *time.Time
	service   Constraint
	region    Constraint
	account   Constraint
}

// Compile turns raw filter parameters into a Filter. Zero values mean
// unconstrained, one value means exact match, several mean match-any.
func Compile(p FilterParams) Filter {
	f := Filter{
		service: compileDim(p.Services),
		region:  compileDim(p.Regions),
		account: compileDim(p.Accounts),
	}
	if p.StartDate != nil {
		d := DateOnly(*p.StartDate)
		f.startDate = &d
	}
	if p.EndDate != nil {
		d := DateOnly(*p.EndDate)
		f.endDate = &d
	}
	return f
}

func compileDim(vals []string) Constraint {
	switch len(vals) {
	case 0:
		return Unconstrained()
	case 1:
		return Exact(vals[0])
	default:
		return AnyOf(vals)
	}
}

func (f Filter) StartDate() *time.Time { return f.startDate }
func (f Filter) EndDate() *time.Time   { return f.endDate }
func (f Filter) Service() Constraint   { return f.service }
func (f Filter) Region() Constraint    { return f.region }
func (f Filter) Account() Constraint   { return f.account }

// Matches evaluates the predicate against a record. Date bounds are
// inclusive on both ends.
func (f Filter) Matches(r *CostRecord) bool {
	d := DateOnly(r.Date)
	if f.startDate != nil && d.Before(*f.startDate) {
		return false
	}
	if f.endDate != nil && d.After(*f.endDate) {
		return false
	}
	return f.service.Match(r.ServiceName) &&
		f.region.Match(r.Region) &&
		f.account.Match(r.AccountID)
}
