package mcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var errNoDatabase = errors.New("billing tools require database connection")

// parseAsOf reads an optional YYYY-MM-DD date. Empty means "today" to the
// services, which they express as the zero time.
func parseAsOf(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of must be YYYY-MM-DD: %w", err)
	}
	return day, nil
}

func parseSubscriptionID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, errors.New("subscription id is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subscription id %q", value)
	}
	return id, nil
}
