package ingest

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FieldType represents the expected data type for a canonical field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldNumeric
	FieldBool
)

// String returns the lower-case name used in alias files.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "decimal"
	case FieldBool:
		return "bool"
	default:
		return "unknown"
	}
}

// FieldSpec describes one canonical field and the raw header spellings that map to it.
type FieldSpec struct {
	Name    string    // Canonical name, also the JSON and store attribute name
	Type    FieldType // Parser applied to the resolved cell
	Aliases []string  // Accepted source headers, most preferred first
}

// HeaderIndex maps normalized header text to its position in the CSV row.
type HeaderIndex map[string]int

// Outcome is the result of parsing a single cell.
type Outcome int

const (
	OutcomeAbsent Outcome = iota
	OutcomeParsed
	OutcomeUnparseable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeUnparseable:
		return "unparseable"
	default:
		return "absent"
	}
}

// Record is the canonical guarantee instrument built from one CSV row.
// Every field is optional: Valid=false means the field was absent or could
// not be parsed. A Record is not modified after FileMapper.Map returns it.
type Record struct {
	SystemID                  pgtype.Text    `json:"gtiSystemId"`
	GuarantorName             pgtype.Text    `json:"guarantorName"`
	ApplicantName             pgtype.Text    `json:"applicantName"`
	BeneficiaryName           pgtype.Text    `json:"beneficiaryName"`
	ApplicantQuickCode        pgtype.Text    `json:"applicantQuickCode"`
	BeneficiaryQuickCode      pgtype.Text    `json:"beneficiaryQuickCode"`
	GuarantorQuickCode        pgtype.Text    `json:"guarantorQuickCode"`
	Category                  pgtype.Text    `json:"category"`
	NominalCurrency           pgtype.Text    `json:"nominalCurrency"`
	ActualAmount              pgtype.Numeric `json:"actualAmount"`
	IssueDate                 pgtype.Date    `json:"issueDate"`
	ExpiryDate                pgtype.Date    `json:"expiryDate"`
	GuaranteeStatus           pgtype.Text    `json:"guaranteeStatus"`
	AmdSystemID               pgtype.Text    `json:"amdSystemId"`
	AmendmentDate             pgtype.Date    `json:"amendmentDate"`
	NewExpiryDate             pgtype.Date    `json:"newExpiryDate"`
	AmendmentStatus           pgtype.Text    `json:"amendmentStatus"`
	GuaranteeTypeDetails      pgtype.Text    `json:"guaranteeTypeDetails"`
	InternalReference         pgtype.Text    `json:"internalReference"`
	NewNominalAmount          pgtype.Numeric `json:"newNominalAmount"`
	NominalAmountChange       pgtype.Numeric `json:"nominalAmountChange"`
	AutomaticExtensionPeriod  pgtype.Text    `json:"automaticExtensionPeriod"`
	BankReferenceNumber       pgtype.Text    `json:"bankReferenceNumber"`
	TreasuryFlag              pgtype.Bool    `json:"treasuryFlag"`
	InstrumentType            pgtype.Text    `json:"instrumentType"`
	BusinessGroup             pgtype.Text    `json:"businessGroup"`
	ReleaseDate               pgtype.Date    `json:"releaseDate"`
	OtherComments             pgtype.Text    `json:"otherComments"`
	RatingTrigger             pgtype.Text    `json:"ratingTrigger"`
	SeparateAuthority         pgtype.Bool    `json:"separateAuthority"`
	Consolidated              pgtype.Bool    `json:"consolidated"`
	GtyDisclosure1            pgtype.Text    `json:"gtyDisclosure1"`
	GtyDisclosure2Subcategory pgtype.Text    `json:"gtyDisclosure2Subcategory"`
	LcDisclosure1             pgtype.Text    `json:"lcDisclosure1"`
	LcDisclosure2Subcategory  pgtype.Text    `json:"lcDisclosure2Subcategory"`
	ContractNumber            pgtype.Text    `json:"contractNumber"`
}

// Identity returns the system identifier and whether it is present.
func (r *Record) Identity() (string, bool) {
	if r == nil || !r.SystemID.Valid {
		return "", false
	}
	return r.SystemID.String, true
}

// Diagnostics lists the fields of one row whose cell was present but unparseable.
type Diagnostics struct {
	Unparseable []string
}

// QueuePublisher accepts one serialized record per call.
type QueuePublisher interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// RecordStore upserts typed items keyed by identity and supports the
// read-only verification lookup run after a batch.
type RecordStore interface {
	Upsert(ctx context.Context, item Item) error
	Lookup(ctx context.Context, key string) (Item, bool, error)
}

// EventPublisher publishes change events. No acknowledgment is awaited beyond
// the returned error.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev CollateralChanged) error
}

// Source lists and opens the objects a batch reads. Keys are opaque to the
// pipeline; a Source decides what they name.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileState is the position of a file in the ingestion state machine.
type FileState string

const (
	StateStart        FileState = "start"
	StateHeaderRead   FileState = "header_read"
	StateRowProcessed FileState = "row_processed"
	StateDone         FileState = "done"
	StateFailed       FileState = "file_failed"
)

// Sink names used in results, logs and metrics.
const (
	SinkQueue = "queue"
	SinkStore = "store"
	SinkEvent = "event"
)

// FileResult summarizes the processing of one source file.
type FileResult struct {
	Name          string         `json:"name"`
	State         FileState      `json:"state"`
	Rows          int            `json:"rows"`
	MalformedRows int            `json:"malformedRows"`
	Unparseable   int            `json:"unparseableCells"`
	SinkFailures  map[string]int `json:"sinkFailures"`
	BytesRead     int64          `json:"bytesRead"`
	Duration      time.Duration  `json:"duration"`
	Error         string         `json:"error,omitempty"` // Non-empty if State is StateFailed
}

// Failed reports whether the file ended in the failure state.
func (r FileResult) Failed() bool {
	return r.State == StateFailed
}

// BatchResult contains the outcome of one invocation over several files.
type BatchResult struct {
	BatchID      string         `json:"batchId"`
	Files        []FileResult   `json:"files"`
	Rows         int            `json:"rows"`
	FailedFiles  int            `json:"failedFiles"`
	SinkFailures map[string]int `json:"sinkFailures"`
	Duration     time.Duration  `json:"duration"`
	Verification string         `json:"verification,omitempty"` // found, missing or error; empty when not configured
}

// Success reports whether no file-level failure occurred. Per-row sink
// failures are reported in SinkFailures and do not affect it.
func (b BatchResult) Success() bool {
	return b.FailedFiles == 0
}
