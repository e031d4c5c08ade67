package ingest

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// KeyAttribute is the attribute that holds the item key in the store.
const KeyAttribute = "systemid"

// DefaultSentinelKey is the key used for records without identity when the
// sentinel policy is enabled.
const DefaultSentinelKey = "default-systemid"

// ErrMissingIdentity is returned by BuildItem when a record has no system id
// and the skip policy is active.
var ErrMissingIdentity = errors.New("record has no system id")

// MissingIDPolicy decides how records without identity reach the store.
type MissingIDPolicy string

const (
	// MissingIDSkip refuses the store write. The queue and event dispatches
	// for the row still happen.
	MissingIDSkip MissingIDPolicy = "skip"

	// MissingIDSentinel writes under a fixed sentinel key. Every record
	// without identity then overwrites the previous one.
	MissingIDSentinel MissingIDPolicy = "sentinel"
)

// ParseMissingIDPolicy converts a config value to a policy.
func ParseMissingIDPolicy(s string) (MissingIDPolicy, error) {
	switch MissingIDPolicy(s) {
	case MissingIDSkip, MissingIDSentinel:
		return MissingIDPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown missing id policy %q (want skip or sentinel)", s)
	}
}

// Attribute is one explicitly typed store value. Exactly one field is set.
type Attribute struct {
	S    *string `json:"S,omitempty"`
	N    *string `json:"N,omitempty"`
	Bool *bool   `json:"BOOL,omitempty"`
}

// StringAttr builds a string attribute.
func StringAttr(s string) Attribute { return Attribute{S: &s} }

// NumberAttr builds an exact decimal attribute from its plain string form.
func NumberAttr(n string) Attribute { return Attribute{N: &n} }

// BoolAttr builds a boolean attribute.
func BoolAttr(b bool) Attribute { return Attribute{Bool: &b} }

// Item is a record in store form: a key plus typed attributes. Absent fields
// have no attribute at all; only the key attribute is always present.
type Item struct {
	Key        string               `json:"key"`
	Attributes map[string]Attribute `json:"attributes"`
}

// BuildItem converts rec into a store item.
func BuildItem(rec *Record, policy MissingIDPolicy, sentinel string) (Item, error) {
	key, ok := rec.Identity()
	if !ok {
		if policy != MissingIDSentinel {
			return Item{}, ErrMissingIdentity
		}
		if sentinel == "" {
			sentinel = DefaultSentinelKey
		}
		key = sentinel
	}

	b := itemBuilder{attrs: make(map[string]Attribute, 37)}
	b.attrs[KeyAttribute] = StringAttr(key)

	b.text(FieldGuarantorName, rec.GuarantorName)
	b.text(FieldApplicantName, rec.ApplicantName)
	b.text(FieldBeneficiaryName, rec.BeneficiaryName)
	b.text(FieldApplicantQuickCode, rec.ApplicantQuickCode)
	b.text(FieldBeneficiaryQuickCode, rec.BeneficiaryQuickCode)
	b.text(FieldGuarantorQuickCode, rec.GuarantorQuickCode)
	b.text(FieldCategory, rec.Category)
	b.text(FieldNominalCurrency, rec.NominalCurrency)
	b.decimal(FieldActualAmount, rec.ActualAmount)
	b.date(FieldIssueDate, rec.IssueDate)
	b.date(FieldExpiryDate, rec.ExpiryDate)
	b.text(FieldGuaranteeStatus, rec.GuaranteeStatus)
	b.text(FieldAmdSystemID, rec.AmdSystemID)
	b.date(FieldAmendmentDate, rec.AmendmentDate)
	b.date(FieldNewExpiryDate, rec.NewExpiryDate)
	b.text(FieldAmendmentStatus, rec.AmendmentStatus)
	b.text(FieldGuaranteeTypeDetails, rec.GuaranteeTypeDetails)
	b.text(FieldInternalReference, rec.InternalReference)
	b.decimal(FieldNewNominalAmount, rec.NewNominalAmount)
	b.decimal(FieldNominalAmountChange, rec.NominalAmountChange)
	b.text(FieldAutomaticExtensionPeriod, rec.AutomaticExtensionPeriod)
	b.text(FieldBankReferenceNumber, rec.BankReferenceNumber)
	b.boolean(FieldTreasuryFlag, rec.TreasuryFlag)
	b.text(FieldInstrumentType, rec.InstrumentType)
	b.text(FieldBusinessGroup, rec.BusinessGroup)
	b.date(FieldReleaseDate, rec.ReleaseDate)
	b.text(FieldOtherComments, rec.OtherComments)
	b.text(FieldRatingTrigger, rec.RatingTrigger)
	b.boolean(FieldSeparateAuthority, rec.SeparateAuthority)
	b.boolean(FieldConsolidated, rec.Consolidated)
	b.text(FieldGtyDisclosure1, rec.GtyDisclosure1)
	b.text(FieldGtyDisclosure2Subcategory, rec.GtyDisclosure2Subcategory)
	b.text(FieldLcDisclosure1, rec.LcDisclosure1)
	b.text(FieldLcDisclosure2Subcategory, rec.LcDisclosure2Subcategory)
	b.text(FieldContractNumber, rec.ContractNumber)

	return Item{Key: key, Attributes: b.attrs}, nil
}

type itemBuilder struct {
	attrs map[string]Attribute
}

func (b itemBuilder) text(name string, v pgtype.Text) {
	if v.Valid {
		b.attrs[name] = StringAttr(v.String)
	}
}

func (b itemBuilder) decimal(name string, v pgtype.Numeric) {
	if s := FormatDecimal(v); s != "" {
		b.attrs[name] = NumberAttr(s)
	}
}

func (b itemBuilder) date(name string, v pgtype.Date) {
	if s := FormatDate(v); s != "" {
		b.attrs[name] = StringAttr(s)
	}
}

func (b itemBuilder) boolean(name string, v pgtype.Bool) {
	if v.Valid {
		b.attrs[name] = BoolAttr(v.Bool)
	}
}
