package costs

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("cost record not found")
	ErrDuplicate = errors.New("cost record already exists")
)

// CostRecord is a single cost accrual: one service, one region, one
// account, one calendar day. The amount carries exactly two fractional
// digits; intermediate sums keep full precision.
type CostRecord struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	ServiceName string          `json:"service_name"`
	CostAmount  decimal.Decimal `json:"cost_amount"`
	Region      string          `json:"region"`
	AccountID   string          `json:"account_id"`
	ResourceID  *string         `json:"resource_id,omitempty"`
	UsageType   *string         `json:"usage_type,omitempty"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DateOnly strips the time-of-day and timezone from t. Record dates are
// compared at day granularity; anchoring them to UTC midnight keeps a
// record from drifting across days when the host timezone changes.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date into its UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// Dimension names a filterable string column of the ledger.
type Dimension string

const (
	DimensionService Dimension = "service_name"
	DimensionRegion  Dimension = "region"
	DimensionAccount Dimension = "account_id"
)

// ServiceSummaryRow and DailyCostRow are raw aggregate rows as the store
// produces them. Sums and counts come back as driver-typed text (or are
// absent entirely for empty groups); the engine normalizes them into
// ServiceSummary / DailyCost via the parse helpers in format.go.
type ServiceSummaryRow struct {
	ServiceName string
	TotalCost   *string
	RecordCount *string
}

type DailyCostRow struct {
	Date      time.Time
	TotalCost *string
}

// ServiceSummary is one per-service aggregate, strictly typed.
type ServiceSummary struct {
	ServiceName string          `json:"service_name"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	RecordCount int64           `json:"record_count"`
}

// DailyCost is one per-day aggregate, strictly typed.
type DailyCost struct {
	Date      time.Time       `json:"date"`
	DailyCost decimal.Decimal `json:"daily_cost"`
}

// FilterCatalog holds the distinct values currently present in the
// ledger for each filterable dimension.
type FilterCatalog struct {
	Services []string `json:"services"`
	Regions  []string `json:"regions"`
	Accounts []string `json:"accounts"`
}

// Store is the durable table of cost records. Implementations must keep
// the documented orderings: List returns date descending with id
// descending as tie-break, SummaryByService returns total descending
// with service name ascending as tie-break, DailyTrend returns date
// ascending. Zero matching rows is success, never an error.
type Store interface {
	Insert(ctx context.Context, rec *CostRecord) error
	InsertBatch(ctx context.Context, recs []*CostRecord) error
	Update(ctx context.Context, rec *CostRecord) error
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, f Filter, limit, offset int) ([]*CostRecord, error)
	Count(ctx context.Context, f Filter) (int64, error)
	SummaryByService(ctx context.Context, f Filter) ([]ServiceSummaryRow, error)
	DailyTrend(ctx context.Context, f Filter) ([]DailyCostRow, error)
	DistinctValues(ctx context.Context, dim Dimension) ([]string, error)
}
