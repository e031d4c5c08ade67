package ingest

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Mapper builds canonical Records from CSV rows using an AliasTable.
// It holds no per-file state and is safe to share.
type Mapper struct {
	table AliasTable
}

// NewMapper returns a Mapper bound to table.
func NewMapper(table AliasTable) *Mapper {
	return &Mapper{table: table}
}

// Table returns the alias table the mapper was built with.
func (m *Mapper) Table() AliasTable {
	return m.table
}

// FileMapper maps the data rows of one file. Columns are resolved once from
// the header row; the resolved plan is read-only afterwards.
type FileMapper struct {
	columns map[string]int // canonical field -> column, only for resolved fields
}

// ForHeader prepares a FileMapper for a file whose first row is header.
func (m *Mapper) ForHeader(header []string) *FileMapper {
	idx := MakeHeaderIndex(header)
	cols := make(map[string]int, len(m.table.specs))
	for _, spec := range m.table.specs {
		if col, ok := idx.Resolve(spec.Aliases); ok {
			cols[spec.Name] = col
		}
	}
	return &FileMapper{columns: cols}
}

// Map is the one-shot form of ForHeader(header).Map(row). Prefer ForHeader
// when mapping more than one row of the same file.
func (m *Mapper) Map(header, row []string) (*Record, Diagnostics) {
	return m.ForHeader(header).Map(row)
}

// Resolved reports how many canonical fields the header provides.
func (f *FileMapper) Resolved() int {
	return len(f.columns)
}

// Map builds a Record from one data row. It never fails: missing columns,
// short rows and unparseable cells all leave the field absent.
func (f *FileMapper) Map(row []string) (*Record, Diagnostics) {
	rc := rowCursor{fm: f, row: row}

	rec := &Record{
		SystemID:                  rc.text(FieldSystemID),
		GuarantorName:             rc.text(FieldGuarantorName),
		ApplicantName:             rc.text(FieldApplicantName),
		BeneficiaryName:           rc.text(FieldBeneficiaryName),
		ApplicantQuickCode:        rc.text(FieldApplicantQuickCode),
		BeneficiaryQuickCode:      rc.text(FieldBeneficiaryQuickCode),
		GuarantorQuickCode:        rc.text(FieldGuarantorQuickCode),
		Category:                  rc.text(FieldCategory),
		NominalCurrency:           rc.text(FieldNominalCurrency),
		ActualAmount:              rc.decimal(FieldActualAmount),
		IssueDate:                 rc.date(FieldIssueDate),
		ExpiryDate:                rc.date(FieldExpiryDate),
		GuaranteeStatus:           rc.text(FieldGuaranteeStatus),
		AmdSystemID:               rc.text(FieldAmdSystemID),
		AmendmentDate:             rc.date(FieldAmendmentDate),
		NewExpiryDate:             rc.date(FieldNewExpiryDate),
		AmendmentStatus:           rc.text(FieldAmendmentStatus),
		GuaranteeTypeDetails:      rc.text(FieldGuaranteeTypeDetails),
		InternalReference:         rc.text(FieldInternalReference),
		NewNominalAmount:          rc.decimal(FieldNewNominalAmount),
		NominalAmountChange:       rc.decimal(FieldNominalAmountChange),
		AutomaticExtensionPeriod:  rc.text(FieldAutomaticExtensionPeriod),
		BankReferenceNumber:       rc.text(FieldBankReferenceNumber),
		TreasuryFlag:              rc.boolean(FieldTreasuryFlag),
		InstrumentType:            rc.text(FieldInstrumentType),
		BusinessGroup:             rc.text(FieldBusinessGroup),
		ReleaseDate:               rc.date(FieldReleaseDate),
		OtherComments:             rc.text(FieldOtherComments),
		RatingTrigger:             rc.text(FieldRatingTrigger),
		SeparateAuthority:         rc.boolean(FieldSeparateAuthority),
		Consolidated:              rc.boolean(FieldConsolidated),
		GtyDisclosure1:            rc.text(FieldGtyDisclosure1),
		GtyDisclosure2Subcategory: rc.text(FieldGtyDisclosure2Subcategory),
		LcDisclosure1:             rc.text(FieldLcDisclosure1),
		LcDisclosure2Subcategory:  rc.text(FieldLcDisclosure2Subcategory),
		ContractNumber:            rc.text(FieldContractNumber),
	}

	return rec, rc.diag
}

// rowCursor reads typed cells of one row and collects diagnostics.
type rowCursor struct {
	fm   *FileMapper
	row  []string
	diag Diagnostics
}

// cell returns the raw cell for field, or false when the column is not in
// this file or lies past the end of a short row.
func (c *rowCursor) cell(field string) (string, bool) {
	col, ok := c.fm.columns[field]
	if !ok || col < 0 || col >= len(c.row) {
		return "", false
	}
	return c.row[col], true
}

func (c *rowCursor) note(field string, o Outcome) {
	if o == OutcomeUnparseable {
		c.diag.Unparseable = append(c.diag.Unparseable, field)
	}
}

func (c *rowCursor) text(field string) pgtype.Text {
	raw, ok := c.cell(field)
	if !ok {
		return pgtype.Text{}
	}
	v, o := ParseText(raw)
	c.note(field, o)
	return v
}

func (c *rowCursor) decimal(field string) pgtype.Numeric {
	raw, ok := c.cell(field)
	if !ok {
		return pgtype.Numeric{}
	}
	v, o := ParseDecimal(raw)
	c.note(field, o)
	return v
}

func (c *rowCursor) date(field string) pgtype.Date {
	raw, ok := c.cell(field)
	if !ok {
		return pgtype.Date{}
	}
	v, o := ParseDate(raw)
	c.note(field, o)
	return v
}

func (c *rowCursor) boolean(field string) pgtype.Bool {
	raw, ok := c.cell(field)
	if !ok {
		return pgtype.Bool{}
	}
	v, o := ParseBool(raw)
	c.note(field, o)
	return v
}
