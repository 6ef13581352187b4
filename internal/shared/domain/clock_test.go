package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"mid month", date(2026, 10, 17), 1, date(2026, 11, 17)},
		{"year rollover", date(2026, 12, 5), 1, date(2027, 1, 5)},
		{"clamps to february", date(2026, 1, 31), 1, date(2026, 2, 28)},
		{"clamps to leap february", date(2028, 1, 31), 1, date(2028, 2, 29)},
		{"clamps to thirty day month", date(2026, 3, 31), 1, date(2026, 4, 30)},
		{"several months", date(2026, 8, 31), 3, date(2026, 11, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.AddMonths(tt.in, tt.n))
		})
	}
}

func TestToday(t *testing.T) {
	clock := domain.NewFixedClock(time.Date(2026, 10, 17, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, date(2026, 10, 17), domain.Today(clock))

	clock.Advance(time.Second)
	assert.Equal(t, date(2026, 10, 18), domain.Today(clock))
}

func TestDateOf_ReadsCalendarDateInOwnZone(t *testing.T) {
	madrid := time.FixedZone("CEST", 2*3600)
	justAfterMidnight := time.Date(2026, 10, 17, 0, 30, 0, 0, madrid)

	assert.Equal(t, date(2026, 10, 17), domain.DateOf(justAfterMidnight))
	assert.Equal(t, date(2026, 10, 16), domain.DateOf(justAfterMidnight.UTC()))
}

func TestSystemClock_DefaultsToUTC(t *testing.T) {
	var clock domain.SystemClock
	assert.Equal(t, time.UTC, clock.Now().Location())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
