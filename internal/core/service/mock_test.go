package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

// Mock OrderRepository. Transactions are accepted and ignored; the
// mutex stands in for MySQL's row locking.
type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order // keyed by ID

	orderNumberAlwaysExists bool
	probedOrderNumbers      []string
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func (m *mockOrderRepo) BeginTx(ctx context.Context) (*sql.Tx, error) { return nil, nil }
func (m *mockOrderRepo) Commit(ctx context.Context, tx *sql.Tx) error { return nil }
func (m *mockOrderRepo) Rollback(ctx context.Context, tx *sql.Tx) error {
	return nil
}

func (m *mockOrderRepo) Insert(ctx context.Context, o domain.Order, tx *sql.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) Update(ctx context.Context, o domain.Order, tx *sql.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id string, tx *sql.Tx) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) FindByIDForUpdate(ctx context.Context, id string, tx *sql.Tx) (domain.Order, error) {
	return m.FindByID(ctx, id, tx)
}

func (m *mockOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string, tx *sql.Tx) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (m *mockOrderRepo) FindByOrderNumberForUpdate(ctx context.Context, orderNumber string, tx *sql.Tx) (domain.Order, error) {
	return m.FindByOrderNumber(ctx, orderNumber, tx)
}

func (m *mockOrderRepo) OrderNumberExists(ctx context.Context, orderNumber string, tx *sql.Tx) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probedOrderNumbers = append(m.probedOrderNumbers, orderNumber)
	if m.orderNumberAlwaysExists {
		return true, nil
	}
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrderRepo) BibNumberExists(ctx context.Context, bibNumber int, tx *sql.Tx) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.BibNumber != nil && *o.BibNumber == bibNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrderRepo) ActiveIdentityExists(ctx context.Context, identityValue string, tx *sql.Tx) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdentityValue == identityValue && o.Status.CountsAgainstStock() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrderRepo) all() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}

// Mock TicketRepository. Reserve enforces sold+qty <= stock under the
// mutex, matching the conditional UPDATE of the real adapter.
type mockTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

func newMockTicketRepo(tickets ...domain.Ticket) *mockTicketRepo {
	m := &mockTicketRepo{tickets: make(map[string]domain.Ticket)}
	for _, t := range tickets {
		m.tickets[t.ID] = t
	}
	return m
}

func (m *mockTicketRepo) FindByID(ctx context.Context, id string, tx *sql.Tx) (domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	return t, nil
}

func (m *mockTicketRepo) FindByIDForUpdate(ctx context.Context, id string, tx *sql.Tx) (domain.Ticket, error) {
	return m.FindByID(ctx, id, tx)
}

func (m *mockTicketRepo) Reserve(ctx context.Context, id string, qty int, tx *sql.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Sold+qty > t.Stock {
		return domain.ErrStockExhausted
	}
	t.Sold += qty
	m.tickets[id] = t
	return nil
}

func (m *mockTicketRepo) Release(ctx context.Context, id string, qty int, tx *sql.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	t.Sold -= qty
	if t.Sold < 0 {
		t.Sold = 0
	}
	m.tickets[id] = t
	return nil
}

func (m *mockTicketRepo) sold(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id].Sold
}

// Mock CacheRepository.
type mockCacheRepo struct {
	mu       sync.Mutex
	keys     map[string]bool
	counters map[string]int64
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		keys:     make(map[string]bool),
		counters: make(map[string]int64),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCacheRepo) IncrementCounter(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *mockCacheRepo) counter(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

// Mock PaymentGateway.
type mockGateway struct {
	mu           sync.Mutex
	sessionCalls int
	session      port.PaymentSession
	sessionErr   error
	statusResp   domain.Notification
	statusErr    error
	verifyErr    error
}

func (m *mockGateway) CreateSession(ctx context.Context, o domain.Order) (port.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCalls++
	if m.sessionErr != nil {
		return port.PaymentSession{}, m.sessionErr
	}
	return m.session, nil
}

func (m *mockGateway) QueryStatus(ctx context.Context, orderNumber string) (domain.Notification, error) {
	if m.statusErr != nil {
		return domain.Notification{}, m.statusErr
	}
	return m.statusResp, nil
}

func (m *mockGateway) VerifyNotification(n domain.Notification) error {
	return m.verifyErr
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionCalls
}
