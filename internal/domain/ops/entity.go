package ops

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindCreate     Kind = "create"
	KindUpdate     Kind = "update"
	KindDelete     Kind = "delete"
	KindActivate   Kind = "activate"
	KindDeactivate Kind = "deactivate"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusPartialSuccess Status = "partial_success"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartialSuccess
}

// Failure reasons recorded on the operation row.
const (
	ReasonTimeout        = "timeout"
	ReasonAuth           = "authentication"
	ReasonMissingListing = "missing listing id"
)

// ErrActiveOperationExists is returned when a second mutation is submitted
// for a (catalog item, provider) pair that already has a pending or
// processing operation. The backing store's partial unique index detects
// the race; this is an expected conflict, not a bug.
var ErrActiveOperationExists = errors.New("active operation already exists for this item and provider")

// Operation is the local record of a provider-side asynchronous mutation.
// Rows are never deleted; they reach a terminal status and stay as audit.
type Operation struct {
	ID                  uuid.UUID
	ProviderOperationID string
	CatalogItemID       int64
	Provider            string
	ListingID           *string // provider listing id, unknown until create completes
	Kind                Kind
	Amount              decimal.NullDecimal
	Currency            string
	Status              Status
	FailureReason       string
	Attempts            int
	CreatedAt           time.Time
	LastPolledAt        *time.Time
	CompletedAt         *time.Time
}

func (o Operation) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(o.CreatedAt) >= timeout
}

// Listing is the local mirror of a marketplace listing, written back by the
// reconciler once a create completes.
type Listing struct {
	ID                int64
	ProviderListingID string
	Provider          string
	CatalogItemID     int64
	VariantID         *int64
	Amount            decimal.Decimal
	Currency          string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ListingEvent is one immutable entry of the listing transition log.
type ListingEvent struct {
	ProviderListingID string
	Provider          string
	OperationID       uuid.UUID
	Kind              Kind
	Status            Status
	Note              string
	OccurredAt        time.Time
}
