package costs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func seedStore(t *testing.T, recs ...*CostRecord) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := store.InsertBatch(context.Background(), recs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestSummaryByService_OrderAndTotals(t *testing.T) {
	// Two EC2 records and one S3 record: EC2 first, higher total.
	store := seedStore(t,
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"),
		record(date(2025, 1, 2), "AmazonEC2", "us-east-1", "111", "2.50"),
		record(date(2025, 1, 1), "AmazonS3", "us-east-1", "111", "0.50"),
	)
	engine := NewEngine(store)

	summary, err := engine.SummaryByService(context.Background(), Compile(FilterParams{}))
	if err != nil {
		t.Fatalf("SummaryByService: %v", err)
	}

	if len(summary) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(summary))
	}
	if summary[0].ServiceName != "AmazonEC2" || !summary[0].TotalCost.Equal(decimal.RequireFromString("3.50")) || summary[0].RecordCount != 2 {
		t.Errorf("Group 0 = %+v, want AmazonEC2 / 3.50 / 2", summary[0])
	}
	if summary[1].ServiceName != "AmazonS3" || !summary[1].TotalCost.Equal(decimal.RequireFromString("0.50")) || summary[1].RecordCount != 1 {
		t.Errorf("Group 1 = %+v, want AmazonS3 / 0.50 / 1", summary[1])
	}
}

func TestSummaryByService_TieBreakByName(t *testing.T) {
	store := seedStore(t,
		record(date(2025, 1, 1), "AmazonS3", "us-east-1", "111", "5.00"),
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "5.00"),
		record(date(2025, 1, 1), "AmazonRDS", "us-east-1", "111", "5.00"),
	)
	engine := NewEngine(store)

	summary, err := engine.SummaryByService(context.Background(), Compile(FilterParams{}))
	if err != nil {
		t.Fatalf("SummaryByService: %v", err)
	}

	want := []string{"AmazonEC2", "AmazonRDS", "AmazonS3"}
	for i, name := range want {
		if summary[i].ServiceName != name {
			t.Errorf("Equal totals must order by service name ascending: position %d = %s, want %s", i, summary[i].ServiceName, name)
		}
	}
}

func TestSummaryByService_ConservesTotalAndCount(t *testing.T) {
	var recs []*CostRecord
	grand := decimal.Zero
	for i := 0; i < 40; i++ {
		amount := decimal.NewFromInt(int64(i)).Mul(decimal.RequireFromString("0.37")).Round(2)
		grand = grand.Add(amount)
		recs = append(recs, record(
			date(2025, 1, 1+i%7),
			fmt.Sprintf("service-%d", i%5),
			"us-east-1", "111",
			amount.String(),
		))
	}
	engine := NewEngine(seedStore(t, recs...))

	summary, err := engine.SummaryByService(context.Background(), Compile(FilterParams{}))
	if err != nil {
		t.Fatalf("SummaryByService: %v", err)
	}

	total := decimal.Zero
	var count int64
	for _, s := range summary {
		total = total.Add(s.TotalCost)
		count += s.RecordCount
	}
	if !total.Equal(grand) {
		t.Errorf("Sum of group totals = %s, want %s", total, grand)
	}
	if count != int64(len(recs)) {
		t.Errorf("Sum of group counts = %d, want %d", count, len(recs))
	}
}

func TestDailyTrend_OrderedNoDuplicatesNoGapFill(t *testing.T) {
	store := seedStore(t,
		record(date(2025, 1, 5), "AmazonEC2", "us-east-1", "111", "2.00"),
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"),
		record(date(2025, 1, 5), "AmazonS3", "us-east-1", "111", "3.00"),
		record(date(2025, 1, 9), "AmazonEC2", "us-east-1", "111", "4.00"),
	)
	engine := NewEngine(store)

	trend, err := engine.DailyTrend(context.Background(), Compile(FilterParams{}))
	if err != nil {
		t.Fatalf("DailyTrend: %v", err)
	}

	if len(trend) != 3 {
		t.Fatalf("Expected 3 days (no synthesized gaps), got %d", len(trend))
	}
	for i := 1; i < len(trend); i++ {
		if !trend[i-1].Date.Before(trend[i].Date) {
			t.Errorf("Trend dates must be strictly increasing: %v before %v", trend[i-1].Date, trend[i].Date)
		}
	}
	if !trend[1].Date.Equal(date(2025, 1, 5)) || !trend[1].DailyCost.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("Jan 5 = %+v, want 5.00", trend[1])
	}
}

func TestList_PaginationCoversExactlyTheFilteredSet(t *testing.T) {
	var recs []*CostRecord
	for i := 0; i < 15; i++ {
		recs = append(recs, record(date(2025, 1, 1+i%5), "AmazonEC2", "us-east-1", "111", "1.00"))
	}
	engine := NewEngine(seedStore(t, recs...))
	filter := Compile(FilterParams{})

	var all []*CostRecord
	page := PageRequest{Page: 1, Limit: 4}
	_, pagination, err := engine.List(context.Background(), filter, page)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if pagination.TotalPages != 4 || pagination.TotalRecords != 15 {
		t.Fatalf("pagination = %+v, want 4 pages / 15 records", pagination)
	}

	for p := 1; p <= pagination.TotalPages; p++ {
		rows, meta, err := engine.List(context.Background(), filter, PageRequest{Page: p, Limit: 4})
		if err != nil {
			t.Fatalf("List page %d: %v", p, err)
		}
		if len(rows) > 4 {
			t.Errorf("Page %d has %d rows, exceeds limit", p, len(rows))
		}
		if meta.CurrentPage != p {
			t.Errorf("Page %d metadata says %d", p, meta.CurrentPage)
		}
		all = append(all, rows...)
	}

	if len(all) != 15 {
		t.Fatalf("Concatenated pages hold %d rows, want 15", len(all))
	}
	seen := make(map[int64]bool)
	for i, r := range all {
		if seen[r.ID] {
			t.Errorf("Record %d appears on two pages", r.ID)
		}
		seen[r.ID] = true
		if i > 0 {
			prev := all[i-1]
			if prev.Date.Before(r.Date) {
				t.Errorf("Rows out of date-descending order at %d", i)
			}
			if prev.Date.Equal(r.Date) && prev.ID < r.ID {
				t.Errorf("Tie-break must be id descending at %d", i)
			}
		}
	}
}

func TestList_PageBeyondEndIsEmptyNotAnError(t *testing.T) {
	var recs []*CostRecord
	for i := 0; i < 15; i++ {
		recs = append(recs, record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"))
	}
	engine := NewEngine(seedStore(t, recs...))

	rows, pagination, err := engine.List(context.Background(), Compile(FilterParams{}), PageRequest{Page: 99, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected empty page, got %d rows", len(rows))
	}
	if rows == nil {
		t.Errorf("Empty page must still be a non-nil slice")
	}
	if pagination.TotalPages != 2 || pagination.TotalRecords != 15 {
		t.Errorf("pagination = %+v, want totalPages 2 / totalRecords 15", pagination)
	}
}

func TestList_MultiValueServiceFilterIsUnion(t *testing.T) {
	store := seedStore(t,
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"),
		record(date(2025, 1, 2), "AmazonS3", "us-east-1", "111", "2.00"),
		record(date(2025, 1, 3), "AmazonRDS", "us-east-1", "111", "3.00"),
		record(date(2025, 1, 4), "AmazonEC2", "eu-west-1", "222", "4.00"),
	)
	engine := NewEngine(store)

	filter := Compile(FilterParams{Services: []string{"AmazonEC2", "AmazonS3"}})
	rows, pagination, err := engine.List(context.Background(), filter, PageRequest{Page: 1, Limit: 50})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if pagination.TotalRecords != 3 || len(rows) != 3 {
		t.Fatalf("Expected union of EC2 and S3 (3 rows), got %d", len(rows))
	}
	for _, r := range rows {
		if r.ServiceName != "AmazonEC2" && r.ServiceName != "AmazonS3" {
			t.Errorf("Unexpected service %s in union result", r.ServiceName)
		}
	}
}

func TestList_Idempotent(t *testing.T) {
	var recs []*CostRecord
	for i := 0; i < 12; i++ {
		recs = append(recs, record(date(2025, 1, 1+i%3), "AmazonEC2", "us-east-1", "111", "1.25"))
	}
	engine := NewEngine(seedStore(t, recs...))
	filter := Compile(FilterParams{Services: []string{"AmazonEC2"}})
	page := PageRequest{Page: 1, Limit: 5}

	first, firstMeta, err := engine.List(context.Background(), filter, page)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	second, secondMeta, err := engine.List(context.Background(), filter, page)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if firstMeta != secondMeta {
		t.Errorf("Metadata changed across identical queries: %+v vs %+v", firstMeta, secondMeta)
	}
	if len(first) != len(second) {
		t.Fatalf("Row count changed across identical queries")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("Row %d differs across identical queries", i)
		}
	}
}

func TestFilterValues_DistinctAndComplete(t *testing.T) {
	store := seedStore(t,
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"),
		record(date(2025, 1, 2), "AmazonEC2", "us-east-1", "111", "2.00"),
		record(date(2025, 1, 3), "AmazonS3", "eu-west-1", "222", "3.00"),
	)
	engine := NewEngine(store)

	catalog, err := engine.FilterValues(context.Background())
	if err != nil {
		t.Fatalf("FilterValues: %v", err)
	}

	assertSet := func(name string, got, want []string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s = %v, want %v", name, got, want)
				return
			}
		}
	}
	assertSet("services", catalog.Services, []string{"AmazonEC2", "AmazonS3"})
	assertSet("regions", catalog.Regions, []string{"eu-west-1", "us-east-1"})
	assertSet("accounts", catalog.Accounts, []string{"111", "222"})
}

type failingDistinctStore struct {
	*MemoryStore
	failDim Dimension
}

func (s *failingDistinctStore) DistinctValues(ctx context.Context, dim Dimension) ([]string, error) {
	if dim == s.failDim {
		return nil, errors.New("connection reset")
	}
	return s.MemoryStore.DistinctValues(ctx, dim)
}

func TestFilterValues_PartialFailureFailsTheCall(t *testing.T) {
	mem := seedStore(t,
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"),
	)
	engine := NewEngine(&failingDistinctStore{MemoryStore: mem, failDim: DimensionRegion})

	catalog, err := engine.FilterValues(context.Background())
	if err == nil {
		t.Fatalf("Expected error when one of three fetches fails, got catalog %+v", catalog)
	}
	if catalog != nil {
		t.Errorf("A partial catalog must never be returned")
	}
}

func TestSummaryByService_EmptyMatchIsSuccess(t *testing.T) {
	store := seedStore(t,
		record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00"),
	)
	engine := NewEngine(store)

	filter := Compile(FilterParams{Services: []string{"NoSuchService"}})
	summary, err := engine.SummaryByService(context.Background(), filter)
	if err != nil {
		t.Fatalf("Zero matching rows must be success, got %v", err)
	}
	if len(summary) != 0 {
		t.Errorf("Expected no groups, got %d", len(summary))
	}
}

func TestMemoryStore_UpdateDeleteNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00")
	rec.ID = 42
	if err := store.Update(ctx, rec); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update unknown id: got %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete unknown id: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_UpdateOverwritesAndKeepsCreatedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := record(date(2025, 1, 1), "AmazonEC2", "us-east-1", "111", "1.00")
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	created := rec.CreatedAt
	time.Sleep(time.Millisecond)

	updated := record(date(2025, 1, 2), "AmazonS3", "eu-west-1", "222", "9.99")
	updated.ID = rec.ID
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Errorf("Update must not change createdAt")
	}
	if !updated.UpdatedAt.After(created) {
		t.Errorf("Update must advance updatedAt")
	}

	rows, _, err := NewEngine(store).List(ctx, Compile(FilterParams{}), PageRequest{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].ServiceName != "AmazonS3" {
		t.Errorf("Update should overwrite the record in place, got %+v", rows)
	}
}
