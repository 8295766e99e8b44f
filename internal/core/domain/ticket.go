package domain

import "time"

// Ticket is one purchasable category with a finite allocation.
// Counters are mutated only through the inventory ledger operations
// of the storage adapter; sold never exceeds stock and never drops
// below zero.
type Ticket struct {
	ID        string
	Name      string
	UnitPrice int64
	Stock     int
	Sold      int
	IsActive  bool
	SaleStart *time.Time
	SaleEnd   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Ticket) Available() int {
	return t.Stock - t.Sold
}

// CheckAvailability reports whether qty units can be sold right now.
// Either sale-window bound may be absent, meaning unbounded on that side.
func (t Ticket) CheckAvailability(qty int, now time.Time) error {
	if !t.IsActive {
		return ErrTicketInactive
	}
	if t.SaleStart != nil && now.Before(*t.SaleStart) {
		return ErrOutsideSaleWindow
	}
	if t.SaleEnd != nil && now.After(*t.SaleEnd) {
		return ErrOutsideSaleWindow
	}
	if t.Available() < qty {
		return ErrStockExhausted
	}
	return nil
}
