package costs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements Store on a cost_records table. Filters are
// pushed down as a dynamic WHERE clause; numeric aggregates come back as
// text so that sums never pass through float64.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const insertQuery = `
	INSERT INTO cost_records (date, service_name, cost_amount, region, account_id, resource_id, usage_type, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at
`

func (s *PostgresStore) Insert(ctx context.Context, rec *CostRecord) error {
	err := s.db.QueryRow(ctx, insertQuery,
		DateOnly(rec.Date), rec.ServiceName, rec.CostAmount.StringFixed(2),
		rec.Region, rec.AccountID, rec.ResourceID, rec.UsageType, rec.Description,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert cost record: %w", err)
	}

	return nil
}

func (s *PostgresStore) InsertBatch(ctx context.Context, recs []*CostRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(insertQuery,
			DateOnly(rec.Date), rec.ServiceName, rec.CostAmount.StringFixed(2),
			rec.Region, rec.AccountID, rec.ResourceID, rec.UsageType, rec.Description,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, rec := range recs {
		err := results.QueryRow().Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert cost record batch: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *CostRecord) error {
	query := `
		UPDATE cost_records
		SET date = $2, service_name = $3, cost_amount = $4, region = $5,
		    account_id = $6, resource_id = $7, usage_type = $8, description = $9,
		    updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		rec.ID, DateOnly(rec.Date), rec.ServiceName, rec.CostAmount.StringFixed(2),
		rec.Region, rec.AccountID, rec.ResourceID, rec.UsageType, rec.Description,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update cost record: %w", err)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cost_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cost record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter, limit, offset int) ([]*CostRecord, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(`
		SELECT id, date, service_name, cost_amount::text, region, account_id,
		       resource_id, usage_type, description, created_at, updated_at
		FROM cost_records
		%s
		ORDER BY date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	defer rows.Close()

	var recs []*CostRecord
	for rows.Next() {
		var r CostRecord
		var amount string
		err := rows.Scan(
			&r.ID, &r.Date, &r.ServiceName, &amount, &r.Region, &r.AccountID,
			&r.ResourceID, &r.UsageType, &r.Description, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}
		r.CostAmount = ParseAmount(&amount)
		r.Date = DateOnly(r.Date)
		recs = append(recs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cost records: %w", err)
	}

	return recs, nil
}

func (s *PostgresStore) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM cost_records %s`, where)

	var n int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cost records: %w", err)
	}

	return n, nil
}

func (s *PostgresStore) SummaryByService(ctx context.Context, f Filter) ([]ServiceSummaryRow, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(`
		SELECT service_name, SUM(cost_amount)::text, COUNT(*)::text
		FROM cost_records
		%s
		GROUP BY service_name
		ORDER BY SUM(cost_amount) DESC, service_name ASC
	`, where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service summary: %w", err)
	}
	defer rows.Close()

	var out []ServiceSummaryRow
	for rows.Next() {
		var row ServiceSummaryRow
		if err := rows.Scan(&row.ServiceName, &row.TotalCost, &row.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan service summary: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating service summary: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) DailyTrend(ctx context.Context, f Filter) ([]DailyCostRow, error) {
	where, args := buildWhere(f)
	query := fmt.Sprintf(`
		SELECT date, SUM(cost_amount)::text
		FROM cost_records
		%s
		GROUP BY date
		ORDER BY date ASC
	`, where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily trend: %w", err)
	}
	defer rows.Close()

	var out []DailyCostRow
	for rows.Next() {
		var row DailyCostRow
		if err := rows.Scan(&row.Date, &row.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan daily trend: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily trend: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) DistinctValues(ctx context.Context, dim Dimension) ([]string, error) {
	// dim is one of the Dimension constants, never caller input.
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM cost_records WHERE %s IS NOT NULL ORDER BY %s ASC
	`, dim, dim, dim)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", dim, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct %s: %w", dim, err)
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct %s: %w", dim, err)
	}

	return values, nil
}

// buildWhere renders the compiled filter as a WHERE clause with
// positional args. Date bounds are inclusive; match-any constraints use
// = ANY over a text array.
func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	next := func() int { return len(args) + 1 }

	if start := f.StartDate(); start != nil {
		conds = append(conds, fmt.Sprintf("date >= $%d", next()))
		args = append(args, *start)
	}
	if end := f.EndDate(); end != nil {
		conds = append(conds, fmt.Sprintf("date <= $%d", next()))
		args = append(args, *end)
	}

	for _, dim := range []struct {
		column string
		c      Constraint
	}{
		{"service_name", f.Service()},
		{"region", f.Region()},
		{"account_id", f.Account()},
	} {
		if v, ok := dim.c.ExactValue(); ok {
			conds = append(conds, fmt.Sprintf("%s = $%d", dim.column, next()))
			args = append(args, v)
		} else if vs, ok := dim.c.AnyOfValues(); ok {
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", dim.column, next()))
			args = append(args, vs)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
