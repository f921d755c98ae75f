package expiry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/clock"
	"github.com/vendora/promokit/internal/events"
)

var workerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupExpiryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS promotions (
			id BIGINT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			end_date DATETIME,
			max_total_usage BIGINT,
			max_budget NUMERIC,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS promotion_usage (
			id BIGINT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			promotion_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL DEFAULT 0,
			total_used BIGINT NOT NULL DEFAULT 0,
			total_savings NUMERIC NOT NULL DEFAULT 0,
			budget_used NUMERIC NOT NULL DEFAULT 0,
			reward_pieces_used BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS promotion_events (
			id BIGINT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT false,
			created_at DATETIME,
			UNIQUE (tenant_id, dedupe_key)
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestWorker(t *testing.T, db *gorm.DB, outbox *events.Outbox) *Worker {
	t.Helper()
	return NewWorker(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clock.FixedClock{Instant: workerNow},
		Outbox: outbox,
	})
}

func insertPromotion(t *testing.T, db *gorm.DB, id int64, status string, endDate *time.Time, maxTotal *int64, maxBudget *float64) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO promotions (id, tenant_id, status, end_date, max_total_usage, max_budget, updated_at)
		 VALUES (?, 1, ?, ?, ?, ?, ?)`,
		id, status, endDate, maxTotal, maxBudget, workerNow,
	).Error
	if err != nil {
		t.Fatalf("insert promotion %d: %v", id, err)
	}
}

func insertGlobalUsage(t *testing.T, db *gorm.DB, promotionID, totalUsed int64, budgetUsed float64) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO promotion_usage (id, tenant_id, promotion_id, client_id, total_used, budget_used, created_at, updated_at)
		 VALUES (?, 1, ?, 0, ?, ?, ?, ?)`,
		promotionID*10, promotionID, totalUsed, budgetUsed, workerNow, workerNow,
	).Error
	if err != nil {
		t.Fatalf("insert usage %d: %v", promotionID, err)
	}
}

func promotionStatus(t *testing.T, db *gorm.DB, id int64) string {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM promotions WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	return status
}

func TestProcessBatchFinishesPastEndDate(t *testing.T) {
	db := setupExpiryTestDB(t)
	w := newTestWorker(t, db, nil)

	past := workerNow.Add(-time.Hour)
	future := workerNow.Add(time.Hour)
	insertPromotion(t, db, 1, "active", &past, nil, nil)
	insertPromotion(t, db, 2, "active", &future, nil, nil)
	insertPromotion(t, db, 3, "active", nil, nil, nil)

	n, err := w.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 {
		t.Fatalf("finished = %d, want 1", n)
	}
	if got := promotionStatus(t, db, 1); got != "finished" {
		t.Fatalf("expired promotion status = %q", got)
	}
	if got := promotionStatus(t, db, 2); got != "active" {
		t.Fatalf("future promotion status = %q", got)
	}
	if got := promotionStatus(t, db, 3); got != "active" {
		t.Fatalf("unbounded promotion status = %q", got)
	}
}

func TestProcessBatchSkipsPausedPromotions(t *testing.T) {
	db := setupExpiryTestDB(t)
	w := newTestWorker(t, db, nil)

	past := workerNow.Add(-time.Hour)
	insertPromotion(t, db, 4, "paused", &past, nil, nil)

	n, err := w.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 0 {
		t.Fatalf("finished = %d, want 0", n)
	}
	if got := promotionStatus(t, db, 4); got != "paused" {
		t.Fatalf("paused promotion status = %q", got)
	}
}

func TestProcessBatchFinishesExhaustedUsageAndBudget(t *testing.T) {
	db := setupExpiryTestDB(t)
	w := newTestWorker(t, db, nil)

	maxTotal := int64(100)
	maxBudget := 500.0
	insertPromotion(t, db, 5, "active", nil, &maxTotal, nil)
	insertGlobalUsage(t, db, 5, 100, 0)
	insertPromotion(t, db, 6, "active", nil, nil, &maxBudget)
	insertGlobalUsage(t, db, 6, 10, 500)
	insertPromotion(t, db, 7, "active", nil, &maxTotal, nil)
	insertGlobalUsage(t, db, 7, 99, 0)

	n, err := w.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 2 {
		t.Fatalf("finished = %d, want 2", n)
	}
	if got := promotionStatus(t, db, 5); got != "finished" {
		t.Fatalf("usage-exhausted status = %q", got)
	}
	if got := promotionStatus(t, db, 6); got != "finished" {
		t.Fatalf("budget-exhausted status = %q", got)
	}
	if got := promotionStatus(t, db, 7); got != "active" {
		t.Fatalf("promotion under its cap status = %q", got)
	}
}

func TestProcessBatchPublishesFinishedEventOnce(t *testing.T) {
	db := setupExpiryTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	w := newTestWorker(t, db, events.NewOutbox(db, node))

	past := workerNow.Add(-time.Hour)
	insertPromotion(t, db, 8, "active", &past, nil, nil)

	if _, err := w.ProcessBatch(context.Background(), 10); err != nil {
		t.Fatalf("process: %v", err)
	}
	// A second run sees no active candidates, so no duplicate event.
	if _, err := w.ProcessBatch(context.Background(), 10); err != nil {
		t.Fatalf("process again: %v", err)
	}

	var count int64
	err = db.Raw(
		`SELECT COUNT(*) FROM promotion_events WHERE event_type = ? AND dedupe_key = ?`,
		events.EventPromotionFinished, "finished:8",
	).Scan(&count).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("finished events = %d, want exactly 1", count)
	}
}
