package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/raceday/race-order/internal/core/domain"
	"github.com/raceday/race-order/internal/port"
)

const (
	orderNumberCharset   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderSuffixWidth     = 6
	orderSuffixMaxWidth  = 10
	attemptsPerWidth     = 5
	bibNumberMaxAttempts = 25
)

// IdentifierGenerator produces collision-free order numbers and bib
// numbers. Uniqueness checks run inside the caller's transaction so
// that two concurrent purchases cannot both claim the same identifier.
// Attempts are bounded; on repeated order-number collisions the random
// suffix widens before the generator gives up with
// domain.ErrIdentifierExhausted.
type IdentifierGenerator struct {
	orders port.OrderRepository
	prefix string
	bibMin int
	bibMax int
}

func NewIdentifierGenerator(orders port.OrderRepository, prefix string, bibMin, bibMax int) *IdentifierGenerator {
	return &IdentifierGenerator{
		orders: orders,
		prefix: prefix,
		bibMin: bibMin,
		bibMax: bibMax,
	}
}

// OrderNumber returns a fresh identifier of the form
// <prefix>-<YYYYMMDD>-<random base-36 suffix>.
func (g *IdentifierGenerator) OrderNumber(ctx context.Context, now time.Time, tx *sql.Tx) (string, error) {
	date := now.Format("20060102")

	for width := orderSuffixWidth; width <= orderSuffixMaxWidth; width += 2 {
		for attempt := 0; attempt < attemptsPerWidth; attempt++ {
			suffix, err := randomString(orderNumberCharset, width)
			if err != nil {
				return "", fmt.Errorf("generate order number: %w", err)
			}
			candidate := fmt.Sprintf("%s-%s-%s", g.prefix, date, suffix)

			exists, err := g.orders.OrderNumberExists(ctx, candidate, tx)
			if err != nil {
				return "", fmt.Errorf("check order number: %w", err)
			}
			if !exists {
				return candidate, nil
			}
		}
	}

	return "", domain.ErrIdentifierExhausted
}

// BibNumber draws from the configured numeric range. The space is
// small, so collisions get likely as the event fills; the attempt count
// stays bounded and exhaustion is surfaced to the caller.
func (g *IdentifierGenerator) BibNumber(ctx context.Context, tx *sql.Tx) (int, error) {
	span := int64(g.bibMax - g.bibMin + 1)
	if span <= 0 {
		return 0, domain.ErrIdentifierExhausted
	}

	for attempt := 0; attempt < bibNumberMaxAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return 0, fmt.Errorf("generate bib number: %w", err)
		}
		candidate := g.bibMin + int(n.Int64())

		exists, err := g.orders.BibNumberExists(ctx, candidate, tx)
		if err != nil {
			return 0, fmt.Errorf("check bib number: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return 0, domain.ErrIdentifierExhausted
}

func randomString(charset string, length int) (string, error) {
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
