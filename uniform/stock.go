/*
stock.go - Stock ledger with transactional deduction

PURPOSE:
  Decrements batch stock as uniforms are issued. This is the only component
  in the system that needs transactional read-then-conditionally-write
  semantics: two staff members issuing the last shirt at the same time must
  not both pass a stock check against stale data and jointly overdraw.

TRANSACTION PROTOCOL:
  Deduct re-checks availability INSIDE the store transaction - the public
  CheckStock is advisory only and its result is never trusted for the
  mutation. On ErrTransactionConflict from the store, Deduct retries with
  linear backoff up to maxAttempts before surfacing the conflict.

DEPLETION STAMP:
  When a deduction brings a size's quantity to exactly 0, DepletedAt is set.
  First transition only; later no-op deductions against the same size do not
  reset it.

DRAIN ORDER:
  When stock for one size spans multiple batches, the oldest batch (by
  ReceivedAt) is drained first.

SEE ALSO:
  - issue.go: the caller that combines Deduct with the log append
  - store.go: BatchStore.WithTx contract
*/
package uniform

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// STOCK LEDGER
// =============================================================================

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 25 * time.Millisecond
)

type StockLedger struct {
	store BatchStore

	// Overridable for tests.
	Now         func() time.Time
	MaxAttempts int
	Backoff     time.Duration
}

func NewStockLedger(store BatchStore) *StockLedger {
	return &StockLedger{
		store:       store,
		Now:         time.Now,
		MaxAttempts: defaultMaxAttempts,
		Backoff:     defaultBackoff,
	}
}

// Deduction reports what a successful Deduct actually did.
type Deduction struct {
	UniformID UniformID
	Size      string
	Quantity  int

	// Batches the deduction touched, oldest first.
	Batches []BatchID

	// Sizes that reached zero during this deduction.
	Depleted []BatchID
}

// =============================================================================
// STOCK CHECK (advisory)
// =============================================================================

// CheckStock reports whether `quantity` of a size is currently available.
// The result is advisory: Deduct re-checks inside its transaction.
func (l *StockLedger) CheckStock(ctx context.Context, uniformID UniformID, size string, quantity int) (StockCheck, error) {
	batches, err := l.store.BatchesForUniform(ctx, uniformID)
	if err != nil {
		return StockCheck{}, err
	}
	return checkAgainst(batches, size, quantity), nil
}

func checkAgainst(batches []Batch, size string, quantity int) StockCheck {
	check := StockCheck{VariantIndex: -1}
	for _, batch := range batches {
		for vi, variant := range batch.Items {
			for _, s := range variant.Sizes {
				if !sameSize(s.Size, size) {
					continue
				}
				check.CurrentStock += s.Quantity
				if check.BatchID == "" && s.Quantity > 0 {
					check.BatchID = batch.ID
					check.VariantIndex = vi
				}
			}
		}
	}
	check.Available = quantity > 0 && check.CurrentStock >= quantity
	return check
}

// =============================================================================
// TRANSACTIONAL DEDUCTION
// =============================================================================

// Deduct atomically decrements `quantity` of a size across the uniform's
// batches. Insufficient stock fails the whole unit with
// *InsufficientStockError and mutates nothing. Transaction conflicts are
// retried internally.
func (l *StockLedger) Deduct(ctx context.Context, uniformID UniformID, size string, quantity int) (Deduction, error) {
	if quantity <= 0 {
		return Deduction{}, &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}

	var result Deduction
	var err error
	for attempt := 1; ; attempt++ {
		result, err = l.deductOnce(ctx, uniformID, size, quantity)
		if !errors.Is(err, ErrTransactionConflict) || attempt >= l.MaxAttempts {
			return result, err
		}
		select {
		case <-ctx.Done():
			return Deduction{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * l.Backoff):
		}
	}
}

func (l *StockLedger) deductOnce(ctx context.Context, uniformID UniformID, size string, quantity int) (Deduction, error) {
	result := Deduction{UniformID: uniformID, Size: size, Quantity: quantity}

	err := l.store.WithTx(ctx, func(tx BatchTx) error {
		batches, err := tx.BatchesForUniform(ctx, uniformID)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			return ErrBatchNotFound
		}

		// Oldest batch drains first.
		sort.SliceStable(batches, func(i, j int) bool {
			return batches[i].ReceivedAt.Before(batches[j].ReceivedAt)
		})

		check := checkAgainst(batches, size, quantity)
		if !check.Available {
			return &InsufficientStockError{
				UniformID:    uniformID,
				Size:         size,
				Requested:    quantity,
				CurrentStock: check.CurrentStock,
			}
		}

		remaining := quantity
		now := l.Now()
		for bi := range batches {
			if remaining == 0 {
				break
			}
			touched := false
			for vi := range batches[bi].Items {
				for si := range batches[bi].Items[vi].Sizes {
					s := &batches[bi].Items[vi].Sizes[si]
					if !sameSize(s.Size, size) || s.Quantity == 0 || remaining == 0 {
						continue
					}
					take := s.Quantity
					if take > remaining {
						take = remaining
					}
					s.Quantity -= take
					remaining -= take
					touched = true
					if s.Quantity == 0 && s.DepletedAt == nil {
						at := now
						s.DepletedAt = &at
						result.Depleted = append(result.Depleted, batches[bi].ID)
					}
				}
			}
			if touched {
				result.Batches = append(result.Batches, batches[bi].ID)
				if err := tx.SaveBatch(ctx, batches[bi]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Deduction{}, err
	}
	return result, nil
}

// sameSize matches sizes case-insensitively, ignoring surrounding space.
func sameSize(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
