package costs

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store used by tests and local runs. It
// mirrors the PostgresStore's ordering and aggregation semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	recs   map[int64]*CostRecord
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[int64]*CostRecord), nextID: 1}
}

func (s *MemoryStore) Insert(ctx context.Context, rec *CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return nil
}

func (s *MemoryStore) InsertBatch(ctx context.Context, recs []*CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.insertLocked(rec)
	}
	return nil
}

func (s *MemoryStore) insertLocked(rec *CostRecord) {
	now := time.Now().UTC()
	rec.ID = s.nextID
	s.nextID++
	rec.Date = DateOnly(rec.Date)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	clone := *rec
	s.recs[rec.ID] = &clone
}

func (s *MemoryStore) Update(ctx context.Context, rec *CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recs[rec.ID]
	if !ok {
		return ErrNotFound
	}

	rec.Date = DateOnly(rec.Date)
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	clone := *rec
	s.recs[rec.ID] = &clone
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[id]; !ok {
		return ErrNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter, limit, offset int) ([]*CostRecord, error) {
	matched := s.matching(f)

	// date desc, id desc — same ordering the SQL store produces.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID > matched[j].ID
	})

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	return int64(len(s.matching(f))), nil
}

func (s *MemoryStore) SummaryByService(ctx context.Context, f Filter) ([]ServiceSummaryRow, error) {
	totals := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	for _, r := range s.matching(f) {
		totals[r.ServiceName] = totals[r.ServiceName].Add(r.CostAmount)
		counts[r.ServiceName]++
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := totals[names[i]], totals[names[j]]
		if !ti.Equal(tj) {
			return ti.GreaterThan(tj)
		}
		return names[i] < names[j]
	})

	rows := make([]ServiceSummaryRow, 0, len(names))
	for _, name := range names {
		total := totals[name].String()
		count := strconv.FormatInt(counts[name], 10)
		rows = append(rows, ServiceSummaryRow{ServiceName: name, TotalCost: &total, RecordCount: &count})
	}
	return rows, nil
}

func (s *MemoryStore) DailyTrend(ctx context.Context, f Filter) ([]DailyCostRow, error) {
	totals := make(map[time.Time]decimal.Decimal)
	for _, r := range s.matching(f) {
		totals[r.Date] = totals[r.Date].Add(r.CostAmount)
	}

	dates := make([]time.Time, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([]DailyCostRow, 0, len(dates))
	for _, d := range dates {
		total := totals[d].String()
		rows = append(rows, DailyCostRow{Date: d, TotalCost: &total})
	}
	return rows, nil
}

func (s *MemoryStore) DistinctValues(ctx context.Context, dim Dimension) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var values []string
	for _, r := range s.recs {
		var v string
		switch dim {
		case DimensionService:
			v = r.ServiceName
		case DimensionRegion:
			v = r.Region
		case DimensionAccount:
			v = r.AccountID
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}

	sort.Strings(values)
	return values, nil
}

func (s *MemoryStore) matching(f Filter) []*CostRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*CostRecord
	for _, r := range s.recs {
		if f.Matches(r) {
			clone := *r
			matched = append(matched, &clone)
		}
	}
	return matched
}
