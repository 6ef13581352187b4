package application

import (
	"context"
	"fmt"
	"sync/atomic"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
)

// SequenceStore hands out invoice sequence values for a YYYYMM period.
type SequenceStore interface {
	Next(ctx context.Context, period string) (int64, error)
}

const sequenceModulus = 100000

// MemorySequence is a process-local counter seeded from the clock so
// restarts rarely reuse a number. Values wrap at 100000; within one process
// 100000 consecutive draws never repeat. The period is ignored.
type MemorySequence struct {
	counter atomic.Int64
}

// NewMemorySequence seeds the counter from clock.
func NewMemorySequence(clock sharedDomain.Clock) *MemorySequence {
	s := &MemorySequence{}
	s.counter.Store(clock.Now().UnixNano() % sequenceModulus)
	return s
}

func (s *MemorySequence) Next(_ context.Context, _ string) (int64, error) {
	return s.counter.Add(1) % sequenceModulus, nil
}

// InvoiceNumberer formats invoice numbers as FAC-YYYYMM-NNNNN. Store values
// past 99999 wrap so the sequence part stays five digits wide.
type InvoiceNumberer struct {
	store SequenceStore
	clock sharedDomain.Clock
}

// NewInvoiceNumberer creates a numberer over store.
func NewInvoiceNumberer(store SequenceStore, clock sharedDomain.Clock) *InvoiceNumberer {
	return &InvoiceNumberer{store: store, clock: clock}
}

// Next draws the next invoice number for the current month.
func (n *InvoiceNumberer) Next(ctx context.Context) (string, error) {
	period := n.clock.Now().Format("200601")
	seq, err := n.store.Next(ctx, period)
	if err != nil {
		return "", fmt.Errorf("failed to draw invoice sequence: %w", err)
	}
	return fmt.Sprintf("FAC-%s-%05d", period, seq%sequenceModulus), nil
}
