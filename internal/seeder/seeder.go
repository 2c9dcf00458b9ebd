package seeder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/tdhoang/cost-ledger/internal/auth"
	"github.com/tdhoang/cost-ledger/internal/costs"
)

const (
	DemoAPIKey    = "demo-api-key-12345"
	DemoAccountID = "123456789012"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema is the persisted layout: one cost_records table indexed on
// every filterable dimension, plus the api_keys table the auth shell
// reads. All statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		account_id TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cost_records (
		id BIGSERIAL PRIMARY KEY,
		date DATE NOT NULL,
		service_name TEXT NOT NULL,
		cost_amount NUMERIC(14,2) NOT NULL CHECK (cost_amount >= 0),
		region TEXT NOT NULL,
		account_id TEXT NOT NULL,
		resource_id TEXT,
		usage_type TEXT,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_records_date ON cost_records (date)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_records_service ON cost_records (service_name)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_records_region ON cost_records (region)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_records_account ON cost_records (account_id)`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SeedDemo inserts a demo API key and a handful of sample cost records.
func SeedDemo(ctx context.Context, authStore auth.Store, costStore costs.Store) {
	h := sha256.New()
	h.Write([]byte(DemoAPIKey))
	keyHash := hex.EncodeToString(h.Sum(nil))

	apiKey := &auth.APIKey{
		AccountID: DemoAccountID,
		KeyHash:   keyHash,
		Active:    true,
	}
	if err := authStore.Create(ctx, apiKey); err != nil {
		log.Printf("[Seeder] API key may already exist, skipping: %v", err)
		return
	}
	log.Printf("[Seeder] Demo API key created successfully")
	log.Printf("[Seeder] Key: %s", DemoAPIKey)
	log.Printf("[Seeder] AccountID: %s", DemoAccountID)

	today := costs.DateOnly(time.Now().UTC())
	sample := []*costs.CostRecord{
		{Date: today.AddDate(0, 0, -2), ServiceName: "AmazonEC2", CostAmount: decimal.RequireFromString("142.50"), Region: "us-east-1", AccountID: DemoAccountID},
		{Date: today.AddDate(0, 0, -2), ServiceName: "AmazonS3", CostAmount: decimal.RequireFromString("18.03"), Region: "us-east-1", AccountID: DemoAccountID},
		{Date: today.AddDate(0, 0, -1), ServiceName: "AmazonEC2", CostAmount: decimal.RequireFromString("139.75"), Region: "us-east-1", AccountID: DemoAccountID},
		{Date: today.AddDate(0, 0, -1), ServiceName: "AmazonRDS", CostAmount: decimal.RequireFromString("86.20"), Region: "eu-west-1", AccountID: DemoAccountID},
		{Date: today, ServiceName: "AmazonS3", CostAmount: decimal.RequireFromString("17.88"), Region: "us-east-1", AccountID: DemoAccountID},
	}
	if err := costStore.InsertBatch(ctx, sample); err != nil {
		log.Printf("[Seeder] failed to insert sample cost records: %v", err)
		return
	}
	log.Printf("[Seeder] Inserted %d sample cost records", len(sample))
}
