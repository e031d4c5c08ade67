package ingest

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CollateralStreamType is the stream type of every collateral event.
const CollateralStreamType = "Collateral"

// CauseUnknown marks events whose triggering cause is not tracked. File
// ingestion has no upstream command, so every event it emits carries it.
const CauseUnknown = "unknown"

// StreamID identifies the entity stream an event belongs to.
type StreamID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CollateralChanged is published once per ingested row. It carries the
// identity, a timestamp and a small subset of business fields.
type CollateralChanged struct {
	EventID       string         `json:"eventId"`
	StreamID      StreamID       `json:"streamId"`
	CollateralKey string         `json:"collateralKey"`
	ChangedTime   time.Time      `json:"changedTime"`
	GuarantorName pgtype.Text    `json:"guarantorName"`
	ActualAmount  pgtype.Numeric `json:"actualAmount"`
	Causation     string         `json:"causation"`
}

// NewCollateralChanged builds the change event for rec at time now.
// A record without identity yields an event with an empty key; consumers
// cannot correlate it but it is still published.
func NewCollateralChanged(rec *Record, now time.Time) CollateralChanged {
	key, _ := rec.Identity()
	return CollateralChanged{
		EventID:       uuid.NewString(),
		StreamID:      StreamID{Type: CollateralStreamType, ID: key},
		CollateralKey: key,
		ChangedTime:   now.UTC(),
		GuarantorName: rec.GuarantorName,
		ActualAmount:  rec.ActualAmount,
		Causation:     CauseUnknown,
	}
}
