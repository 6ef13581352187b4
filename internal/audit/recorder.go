// Package audit keeps an append-only revision history of billing records.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChangeKind classifies a revision.
type ChangeKind string

const (
	KindCreate ChangeKind = "create"
	KindUpdate ChangeKind = "update"
	KindDelete ChangeKind = "delete"
)

// Entity types written by the services.
const (
	EntitySubscription  = "subscription"
	EntityInvoice       = "invoice"
	EntityPlan          = "plan"
	EntityUser          = "user"
	EntityPaymentMethod = "payment_method"
)

// ErrNoRevision is returned by AsOf when the entity had no revision at that time.
var ErrNoRevision = errors.New("no revision at the requested time")

// Entry is one stored revision.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Revision   int             `json:"revision"`
	Kind       ChangeKind      `json:"change_kind"`
	Actor      string          `json:"actor"`
	Snapshot   json.RawMessage `json:"snapshot"`
	ChangedAt  time.Time       `json:"changed_at"`
}

// Stat counts revisions per entity type and change kind.
type Stat struct {
	EntityType string     `json:"entity_type"`
	Kind       ChangeKind `json:"change_kind"`
	Count      int64      `json:"count"`
}

// Recorder appends revisions. Implementations join the unit of work carried
// by ctx so the revision commits together with the change it describes.
type Recorder interface {
	Record(ctx context.Context, entityType string, entityID uuid.UUID, kind ChangeKind, actor string, snapshot any) error
}

// NoopRecorder discards revisions.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, string, uuid.UUID, ChangeKind, string, any) error {
	return nil
}
