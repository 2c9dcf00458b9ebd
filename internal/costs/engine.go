package costs

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Engine evaluates one aggregation mode per call against the store. It
// holds no state between requests; every call re-reads the ledger.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// List returns one page of matching records, newest date first, plus
// paging metadata computed from the full match count. Rows and count are
// independent reads and are fetched concurrently; either failure fails
// the call.
func (e *Engine) List(ctx context.Context, f Filter, page PageRequest) ([]*CostRecord, Pagination, error) {
	var (
		recs  []*CostRecord
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = e.store.List(gctx, f, page.Limit, page.Offset())
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = e.store.Count(gctx, f)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, Pagination{}, err
	}

	if recs == nil {
		recs = []*CostRecord{}
	}
	return recs, NewPagination(page, total), nil
}

// SummaryByService groups matching records by service and sums their
// cost, ordered by total descending then service name ascending.
func (e *Engine) SummaryByService(ctx context.Context, f Filter) ([]ServiceSummary, error) {
	rows, err := e.store.SummaryByService(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("summary by service: %w", err)
	}

	summaries := make([]ServiceSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, ServiceSummary{
			ServiceName: row.ServiceName,
			TotalCost:   ParseAmount(row.TotalCost),
			RecordCount: ParseCount(row.RecordCount),
		})
	}
	return summaries, nil
}

// DailyTrend sums matching records per calendar day, oldest first. Days
// with no records do not appear; gap filling is a rendering concern.
func (e *Engine) DailyTrend(ctx context.Context, f Filter) ([]DailyCost, error) {
	rows, err := e.store.DailyTrend(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}

	trend := make([]DailyCost, 0, len(rows))
	for _, row := range rows {
		trend = append(trend, DailyCost{
			Date:      DateOnly(row.Date),
			DailyCost: ParseAmount(row.TotalCost),
		})
	}
	return trend, nil
}

// FilterValues returns the distinct values of each filterable dimension
// across the whole ledger. The three reads are independent and issued
// concurrently; a failure in any one fails the call — a partial catalog
// is never returned.
func (e *Engine) FilterValues(ctx context.Context) (*FilterCatalog, error) {
	catalog := &FilterCatalog{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog.Services, err = e.store.DistinctValues(gctx, DimensionService)
		if err != nil {
			return fmt.Errorf("distinct services: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		catalog.Regions, err = e.store.DistinctValues(gctx, DimensionRegion)
		if err != nil {
			return fmt.Errorf("distinct regions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		catalog.Accounts, err = e.store.DistinctValues(gctx, DimensionAccount)
		if err != nil {
			return fmt.Errorf("distinct accounts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if catalog.Services == nil {
		catalog.Services = []string{}
	}
	if catalog.Regions == nil {
		catalog.Regions = []string{}
	}
	if catalog.Accounts == nil {
		catalog.Accounts = []string{}
	}
	return catalog, nil
}
