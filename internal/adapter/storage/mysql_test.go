package storage

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/raceday/race-order/internal/core/domain"
)

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
	id VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	unit_price BIGINT NOT NULL,
	stock INT NOT NULL,
	sold INT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	sale_start DATETIME NULL,
	sale_end DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
	id VARCHAR(64) PRIMARY KEY,
	order_number VARCHAR(64) NOT NULL,
	bib_number INT NULL,
	ticket_id VARCHAR(64) NOT NULL,
	quantity INT NOT NULL,
	unit_price BIGINT NOT NULL,
	total_price BIGINT NOT NULL,
	status VARCHAR(32) NOT NULL,
	payment_method VARCHAR(64) NOT NULL DEFAULT '',
	payment_reference VARCHAR(128) NOT NULL DEFAULT '',
	paid_at DATETIME NULL,
	notes VARCHAR(1024) NOT NULL DEFAULT '',
	race_pack_collected BOOLEAN NOT NULL DEFAULT FALSE,
	race_pack_collected_at DATETIME NULL,
	race_pack_collected_by VARCHAR(128) NOT NULL DEFAULT '',
	identity_value VARCHAR(128) NOT NULL DEFAULT '',
	form_data JSON NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE KEY uq_orders_order_number (order_number),
	UNIQUE KEY uq_orders_bib_number (bib_number),
	KEY idx_orders_identity (identity_value, status)
)`

func getMySQL(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/raceorder?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	for _, ddl := range []string{createTicketsTable, createOrdersTable} {
		if _, err := db.Exec(ddl); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	db.Exec("DELETE FROM orders")
	db.Exec("DELETE FROM tickets")

	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func seedTicket(t *testing.T, db *sql.DB, id string, stock, sold int) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	_, err := db.Exec(`
		INSERT INTO tickets (id, name, unit_price, stock, sold, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, TRUE, ?, ?)`,
		id, "10K Run", 100000, stock, sold, now, now,
	)
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
}

func TestReserve_ExhaustsAtStock(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	repo := NewTicketRepository(quietLogger(), db)
	seedTicket(t, db, "tkt-1", 2, 0)

	ctx := context.Background()
	if err := repo.Reserve(ctx, "tkt-1", 1, nil); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	if err := repo.Reserve(ctx, "tkt-1", 1, nil); err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}
	if err := repo.Reserve(ctx, "tkt-1", 1, nil); err != domain.ErrStockExhausted {
		t.Fatalf("expected ErrStockExhausted, got %v", err)
	}

	ticket, err := repo.FindByID(ctx, "tkt-1", nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if ticket.Sold != 2 {
		t.Errorf("expected sold 2, got %d", ticket.Sold)
	}
}

func TestReserve_Concurrent(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	repo := NewTicketRepository(quietLogger(), db)

	initialStock := 20
	totalRequests := 50
	seedTicket(t, db, "tkt-conc", initialStock, 0)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(context.Background(), "tkt-conc", 1, nil)
			if err == nil {
				successCount.Add(1)
			} else if err != domain.ErrStockExhausted {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful reservations, got %d", initialStock, successCount.Load())
	}

	ticket, _ := repo.FindByID(context.Background(), "tkt-conc", nil)
	if ticket.Sold != initialStock {
		t.Errorf("expected sold %d, got %d", initialStock, ticket.Sold)
	}
}

func TestRelease_FlooredAtZero(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	repo := NewTicketRepository(quietLogger(), db)
	seedTicket(t, db, "tkt-1", 5, 1)

	ctx := context.Background()
	if err := repo.Release(ctx, "tkt-1", 3, nil); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ticket, _ := repo.FindByID(ctx, "tkt-1", nil)
	if ticket.Sold != 0 {
		t.Errorf("expected sold floored at 0, got %d", ticket.Sold)
	}
}

func TestOrderRoundTrip(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	repo := NewOrderRepository(quietLogger(), db)
	seedTicket(t, db, "tkt-1", 5, 0)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	bib := 123
	order := domain.Order{
		ID:               uuid.NewString(),
		OrderNumber:      "RUN-20260829-ABC123",
		BibNumber:        &bib,
		TicketID:         "tkt-1",
		Quantity:         1,
		UnitPrice:        100000,
		TotalPrice:       100000,
		Status:           domain.OrderStatusPaid,
		PaymentMethod:    "bank_transfer",
		PaymentReference: "txn-42",
		PaidAt:           &now,
		IdentityValue:    "1234567890123456",
		FormData: domain.FormData{
			{Name: "name", Value: "Jane Runner"},
			{Name: "nik", Value: "1234567890123456"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repo.Insert(ctx, order, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := repo.FindByOrderNumber(ctx, order.OrderNumber, nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.BibNumber == nil || *got.BibNumber != bib {
		t.Errorf("bib number lost: %v", got.BibNumber)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(now) {
		t.Errorf("paid_at lost: %v", got.PaidAt)
	}
	if len(got.FormData) != 2 || got.FormData[0].Name != "name" || got.FormData[1].Name != "nik" {
		t.Errorf("form data order lost: %+v", got.FormData)
	}

	exists, err := repo.OrderNumberExists(ctx, order.OrderNumber, nil)
	if err != nil || !exists {
		t.Errorf("OrderNumberExists = (%v, %v)", exists, err)
	}
	exists, err = repo.BibNumberExists(ctx, bib, nil)
	if err != nil || !exists {
		t.Errorf("BibNumberExists = (%v, %v)", exists, err)
	}
	exists, err = repo.ActiveIdentityExists(ctx, "1234567890123456", nil)
	if err != nil || !exists {
		t.Errorf("ActiveIdentityExists = (%v, %v)", exists, err)
	}
}

func TestActiveIdentityExists_IgnoresTerminalOrders(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	repo := NewOrderRepository(quietLogger(), db)
	seedTicket(t, db, "tkt-1", 5, 0)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	order := domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "RUN-20260829-DEF456",
		TicketID:      "tkt-1",
		Quantity:      1,
		Status:        domain.OrderStatusCancelled,
		IdentityValue: "6543210987654321",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Insert(ctx, order, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	exists, err := repo.ActiveIdentityExists(ctx, "6543210987654321", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("cancelled order must not block the identity")
	}
}

func TestUpdate_WithinTransaction(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	repo := NewOrderRepository(quietLogger(), db)
	seedTicket(t, db, "tkt-1", 5, 0)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	order := domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: "RUN-20260829-GHI789",
		TicketID:    "tkt-1",
		Quantity:    1,
		Status:      domain.OrderStatusAwaitingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Insert(ctx, order, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	locked, err := repo.FindByOrderNumberForUpdate(ctx, order.OrderNumber, tx)
	if err != nil {
		t.Fatalf("locked read failed: %v", err)
	}
	locked.Status = domain.OrderStatusPaid
	locked.UpdatedAt = now
	if err := repo.Update(ctx, locked, tx); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := repo.Commit(ctx, tx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, _ := repo.FindByID(ctx, order.ID, nil)
	if got.Status != domain.OrderStatusPaid {
		t.Errorf("expected paid after commit, got %s", got.Status)
	}
}
