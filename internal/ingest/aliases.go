package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical field names. They double as JSON keys and store attribute names.
const (
	FieldSystemID                  = "gtiSystemId"
	FieldGuarantorName             = "guarantorName"
	FieldApplicantName             = "applicantName"
	FieldBeneficiaryName           = "beneficiaryName"
	FieldApplicantQuickCode        = "applicantQuickCode"
	FieldBeneficiaryQuickCode      = "beneficiaryQuickCode"
	FieldGuarantorQuickCode        = "guarantorQuickCode"
	FieldCategory                  = "category"
	FieldNominalCurrency           = "nominalCurrency"
	FieldActualAmount              = "actualAmount"
	FieldIssueDate                 = "issueDate"
	FieldExpiryDate                = "expiryDate"
	FieldGuaranteeStatus           = "guaranteeStatus"
	FieldAmdSystemID               = "amdSystemId"
	FieldAmendmentDate             = "amendmentDate"
	FieldNewExpiryDate             = "newExpiryDate"
	FieldAmendmentStatus           = "amendmentStatus"
	FieldGuaranteeTypeDetails      = "guaranteeTypeDetails"
	FieldInternalReference         = "internalReference"
	FieldNewNominalAmount          = "newNominalAmount"
	FieldNominalAmountChange       = "nominalAmountChange"
	FieldAutomaticExtensionPeriod  = "automaticExtensionPeriod"
	FieldBankReferenceNumber       = "bankReferenceNumber"
	FieldTreasuryFlag              = "treasuryFlag"
	FieldInstrumentType            = "instrumentType"
	FieldBusinessGroup             = "businessGroup"
	FieldReleaseDate               = "releaseDate"
	FieldOtherComments             = "otherComments"
	FieldRatingTrigger             = "ratingTrigger"
	FieldSeparateAuthority         = "separateAuthority"
	FieldConsolidated              = "consolidated"
	FieldGtyDisclosure1            = "gtyDisclosure1"
	FieldGtyDisclosure2Subcategory = "gtyDisclosure2Subcategory"
	FieldLcDisclosure1             = "lcDisclosure1"
	FieldLcDisclosure2Subcategory  = "lcDisclosure2Subcategory"
	FieldContractNumber            = "contractNumber"
)

// DefaultSchemaVersion identifies the built-in alias table.
const DefaultSchemaVersion = "2024.1"

// defaultFieldSpecs is the built-in schema. Alias order matters: the first
// spelling found in a file's header wins.
var defaultFieldSpecs = []FieldSpec{
	{Name: FieldSystemID, Type: FieldText, Aliases: []string{"(GTI) System ID", "System ID"}},
	{Name: FieldGuarantorName, Type: FieldText, Aliases: []string{"(GTI) Guarantor Name", "Guarantor Name", "Guarantor"}},
	{Name: FieldApplicantName, Type: FieldText, Aliases: []string{"(GTI) Applicant Name", "Applicant Name", "Applicant"}},
	{Name: FieldBeneficiaryName, Type: FieldText, Aliases: []string{"(GTI) Beneficiary Name", "Beneficiary Name", "Beneficiary"}},
	{Name: FieldApplicantQuickCode, Type: FieldText, Aliases: []string{"(GTI) Applicant Quick Code", "Applicant Quick Code"}},
	{Name: FieldBeneficiaryQuickCode, Type: FieldText, Aliases: []string{"(GTI) Beneficiary Quick Code", "Beneficiary Quick Code"}},
	{Name: FieldGuarantorQuickCode, Type: FieldText, Aliases: []string{"(GTI) Guarantor Quick Code", "Guarantor Quick Code"}},
	{Name: FieldCategory, Type: FieldText, Aliases: []string{"Category", "(GTI) Category"}},
	{Name: FieldNominalCurrency, Type: FieldText, Aliases: []string{"(GTI) Nominal Currency", "Nominal Currency", "Currency"}},
	{Name: FieldActualAmount, Type: FieldNumeric, Aliases: []string{"(GTI) Actual Amount", "Actual Amount"}},
	{Name: FieldIssueDate, Type: FieldDate, Aliases: []string{"(GTI) Issue Date", "Issue Date"}},
	{Name: FieldExpiryDate, Type: FieldDate, Aliases: []string{"(GTI) Expiry Date", "Expiry Date"}},
	{Name: FieldGuaranteeStatus, Type: FieldText, Aliases: []string{"(GTI) Guarantee Status", "Guarantee Status"}},
	{Name: FieldAmdSystemID, Type: FieldText, Aliases: []string{"(AMD) System ID", "Amendment System ID"}},
	{Name: FieldAmendmentDate, Type: FieldDate, Aliases: []string{"(AMD) Amendment Date", "Amendment Date"}},
	{Name: FieldNewExpiryDate, Type: FieldDate, Aliases: []string{"(AMD) New Expiry Date", "New Expiry Date"}},
	{Name: FieldAmendmentStatus, Type: FieldText, Aliases: []string{"(AMD) Amendment Status", "Amendment Status"}},
	{Name: FieldGuaranteeTypeDetails, Type: FieldText, Aliases: []string{"(GTI) Guarantee Type Details", "Guarantee Type Details"}},
	{Name: FieldInternalReference, Type: FieldText, Aliases: []string{"(CF) Internal Reference", "Internal Reference"}},
	{Name: FieldNewNominalAmount, Type: FieldNumeric, Aliases: []string{"(AMD) New Nominal Amount", "New Nominal Amount"}},
	{Name: FieldNominalAmountChange, Type: FieldNumeric, Aliases: []string{"(AMD) Nominal Amount Increase/Decrease by", "Nominal Amount Increase/Decrease"}},
	{Name: FieldAutomaticExtensionPeriod, Type: FieldText, Aliases: []string{"(GTI) Automatic Extension Period", "Automatic Extension Period"}},
	{Name: FieldBankReferenceNumber, Type: FieldText, Aliases: []string{"(GTI) Bank Reference Number", "Bank Reference Number", "Bank Reference"}},
	{Name: FieldTreasuryFlag, Type: FieldBool, Aliases: []string{"TREASURY FLAG"}},
	{Name: FieldInstrumentType, Type: FieldText, Aliases: []string{"(GTI) Instrument Type", "Instrument Type"}},
	{Name: FieldBusinessGroup, Type: FieldText, Aliases: []string{"Business Group"}},
	{Name: FieldReleaseDate, Type: FieldDate, Aliases: []string{"(GTI) Release Date", "Release Date"}},
	{Name: FieldOtherComments, Type: FieldText, Aliases: []string{"Other Comments", "Comments"}},
	{Name: FieldRatingTrigger, Type: FieldText, Aliases: []string{"RATING TRIGGER"}},
	{Name: FieldSeparateAuthority, Type: FieldBool, Aliases: []string{"SEPARATE AUTHORITY"}},
	{Name: FieldConsolidated, Type: FieldBool, Aliases: []string{"CONSOLIDATED"}},
	{Name: FieldGtyDisclosure1, Type: FieldText, Aliases: []string{"GTY-Disclosure1"}},
	{Name: FieldGtyDisclosure2Subcategory, Type: FieldText, Aliases: []string{"GTY-Disclosure2- Subcategory"}},
	{Name: FieldLcDisclosure1, Type: FieldText, Aliases: []string{"LC-Disclosure1"}},
	// The misspelled header is what the upstream report has always produced.
	{Name: FieldLcDisclosure2Subcategory, Type: FieldText, Aliases: []string{"LC-Disclousure2-Subcategory", "LC-Disclosure2-Subcategory"}},
	{Name: FieldContractNumber, Type: FieldText, Aliases: []string{"(GTI) Contract Number", "Contract Number"}},
}

// ErrUnknownField is returned when an alias file names a field the record does not have.
var ErrUnknownField = errors.New("unknown canonical field")

// AliasTable is the immutable set of canonical fields and their accepted
// header spellings. Build it once at startup and pass it to NewMapper.
type AliasTable struct {
	version string
	specs   []FieldSpec
	byName  map[string]int
}

// DefaultAliasTable returns the built-in schema.
func DefaultAliasTable() AliasTable {
	t, err := NewAliasTable(DefaultSchemaVersion, defaultFieldSpecs)
	if err != nil {
		panic(fmt.Sprintf("built-in alias table invalid: %v", err))
	}
	return t
}

// NewAliasTable validates specs and copies them into a new table.
// Every canonical field must be present exactly once with at least one alias
// and the type the Record declares for it. Two aliases of one field may not
// normalize to the same header key, since the later one could never match.
func NewAliasTable(version string, specs []FieldSpec) (AliasTable, error) {
	t := AliasTable{
		version: version,
		specs:   make([]FieldSpec, 0, len(specs)),
		byName:  make(map[string]int, len(specs)),
	}

	for _, spec := range specs {
		want, known := canonicalTypes[spec.Name]
		if !known {
			return AliasTable{}, fmt.Errorf("%w: %q", ErrUnknownField, spec.Name)
		}
		if spec.Type != want {
			return AliasTable{}, fmt.Errorf("field %q: type %s, want %s", spec.Name, spec.Type, want)
		}
		if _, dup := t.byName[spec.Name]; dup {
			return AliasTable{}, fmt.Errorf("field %q declared twice", spec.Name)
		}
		if len(spec.Aliases) == 0 {
			return AliasTable{}, fmt.Errorf("field %q has no aliases", spec.Name)
		}
		aliases := make([]string, 0, len(spec.Aliases))
		seen := make(map[string]string, len(spec.Aliases))
		for _, a := range spec.Aliases {
			key := NormalizeHeader(a)
			if key == "" {
				return AliasTable{}, fmt.Errorf("field %q: alias %q normalizes to empty", spec.Name, a)
			}
			if prev, dup := seen[key]; dup {
				return AliasTable{}, fmt.Errorf("field %q: alias %q duplicates %q", spec.Name, a, prev)
			}
			seen[key] = a
			aliases = append(aliases, a)
		}
		t.byName[spec.Name] = len(t.specs)
		t.specs = append(t.specs, FieldSpec{Name: spec.Name, Type: spec.Type, Aliases: aliases})
	}

	for name := range canonicalTypes {
		if _, ok := t.byName[name]; !ok {
			return AliasTable{}, fmt.Errorf("field %q missing from alias table", name)
		}
	}

	return t, nil
}

// Version returns the schema version the table was built from.
func (t AliasTable) Version() string { return t.version }

// Fields returns a copy of the field specs in declaration order.
func (t AliasTable) Fields() []FieldSpec {
	out := make([]FieldSpec, len(t.specs))
	for i, s := range t.specs {
		out[i] = FieldSpec{Name: s.Name, Type: s.Type, Aliases: append([]string(nil), s.Aliases...)}
	}
	return out
}

// Aliases returns the ordered aliases for a canonical field.
func (t AliasTable) Aliases(name string) []string {
	i, ok := t.byName[name]
	if !ok {
		return nil
	}
	return append([]string(nil), t.specs[i].Aliases...)
}

// aliasFile is the on-disk YAML form of an alias table.
type aliasFile struct {
	Version string `yaml:"version"`
	Fields  []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"fields"`
}

// LoadAliasTable reads a YAML alias file. Fields listed in the file replace
// the built-in aliases for that field; unlisted fields keep the defaults.
//
//	version: "2025.2"
//	fields:
//	  - name: actualAmount
//	    aliases: ["(GTI) Actual Amount", "Amount (USD)"]
func LoadAliasTable(r io.Reader) (AliasTable, error) {
	var f aliasFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return AliasTable{}, fmt.Errorf("decode alias file: %w", err)
	}
	if strings.TrimSpace(f.Version) == "" {
		return AliasTable{}, errors.New("alias file: version is required")
	}

	specs := make([]FieldSpec, len(defaultFieldSpecs))
	pos := make(map[string]int, len(defaultFieldSpecs))
	for i, s := range defaultFieldSpecs {
		specs[i] = s
		pos[s.Name] = i
	}

	for _, field := range f.Fields {
		i, ok := pos[field.Name]
		if !ok {
			return AliasTable{}, fmt.Errorf("alias file: %w: %q", ErrUnknownField, field.Name)
		}
		specs[i].Aliases = field.Aliases
	}

	return NewAliasTable(f.Version, specs)
}

// canonicalTypes is the type of each Record field, keyed by canonical name.
var canonicalTypes = func() map[string]FieldType {
	m := make(map[string]FieldType, len(defaultFieldSpecs))
	for _, s := range defaultFieldSpecs {
		m[s.Name] = s.Type
	}
	return m
}()
