// Package redisstate shares renewal state between worker replicas.
package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sequenceTTL outlives the month a counter belongs to, so stale periods expire on their own.
const sequenceTTL = 40 * 24 * time.Hour

// Sequence is an application.SequenceStore backed by INCR, one key per
// numbering period. Draws are unique within a period until the counter
// passes 99999, where the numberer wraps it.
type Sequence struct {
	client *redis.Client
	prefix string
}

// NewSequence creates a sequence store under the billora:invoice_seq namespace.
func NewSequence(client *redis.Client) *Sequence {
	return &Sequence{client: client, prefix: "billora:invoice_seq"}
}

func (s *Sequence) key(period string) string {
	return fmt.Sprintf("%s:%s", s.prefix, period)
}

// Next increments and returns the counter for period.
func (s *Sequence) Next(ctx context.Context, period string) (int64, error) {
	key := s.key(period)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment invoice sequence: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, sequenceTTL).Err(); err != nil {
			return 0, fmt.Errorf("expire invoice sequence: %w", err)
		}
	}
	return n, nil
}
