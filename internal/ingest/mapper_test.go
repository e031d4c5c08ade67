package ingest

import (
	"testing"
)

func TestMapper_EndToEndExample(t *testing.T) {
	m := NewMapper(DefaultAliasTable())
	header := []string{"(GTI) System ID", "(GTI) Actual Amount", "(GTI) Issue Date"}
	row := []string{"ABC123", "1,000.00", "1/1/2024"}

	rec, diag := m.Map(header, row)

	if id, ok := rec.Identity(); !ok || id != "ABC123" {
		t.Errorf("Identity() = %q, %v; want ABC123, true", id, ok)
	}
	if got := FormatDecimal(rec.ActualAmount); got != "1000.00" {
		t.Errorf("ActualAmount = %q, want 1000.00", got)
	}
	if got := FormatDate(rec.IssueDate); got != "2024-01-01" {
		t.Errorf("IssueDate = %q, want 2024-01-01", got)
	}
	if rec.GuarantorName.Valid || rec.ExpiryDate.Valid || rec.TreasuryFlag.Valid {
		t.Error("fields missing from the header should be absent")
	}
	if len(diag.Unparseable) != 0 {
		t.Errorf("Unparseable = %v, want none", diag.Unparseable)
	}
}

func TestFileMapper_ShortRow(t *testing.T) {
	fm := NewMapper(DefaultAliasTable()).ForHeader([]string{
		"(GTI) System ID", "(GTI) Guarantor Name", "(GTI) Actual Amount", "TREASURY FLAG",
	})

	rec, diag := fm.Map([]string{"X1"})

	if id, _ := rec.Identity(); id != "X1" {
		t.Errorf("Identity() = %q, want X1", id)
	}
	if rec.GuarantorName.Valid || rec.ActualAmount.Valid || rec.TreasuryFlag.Valid {
		t.Error("cells past the end of the row should be absent")
	}
	if len(diag.Unparseable) != 0 {
		t.Errorf("Unparseable = %v, want none", diag.Unparseable)
	}
}

func TestFileMapper_EmptyRow(t *testing.T) {
	fm := NewMapper(DefaultAliasTable()).ForHeader([]string{"(GTI) System ID"})

	rec, _ := fm.Map(nil)
	if _, ok := rec.Identity(); ok {
		t.Error("expected no identity for an empty row")
	}
}

func TestFileMapper_Diagnostics(t *testing.T) {
	fm := NewMapper(DefaultAliasTable()).ForHeader([]string{
		"System ID", "Actual Amount", "Issue Date", "CONSOLIDATED", "Category",
	})

	rec, diag := fm.Map([]string{"S-9", "abc", "someday", "maybe", ""})

	if rec.ActualAmount.Valid || rec.IssueDate.Valid || rec.Consolidated.Valid || rec.Category.Valid {
		t.Error("unparseable and empty cells should be absent")
	}

	want := []string{FieldActualAmount, FieldIssueDate, FieldConsolidated}
	if len(diag.Unparseable) != len(want) {
		t.Fatalf("Unparseable = %v, want %v", diag.Unparseable, want)
	}
	for i := range want {
		if diag.Unparseable[i] != want[i] {
			t.Errorf("Unparseable[%d] = %q, want %q", i, diag.Unparseable[i], want[i])
		}
	}
}

func TestFileMapper_AliasPreference(t *testing.T) {
	// Both spellings present: the first alias in the table wins.
	fm := NewMapper(DefaultAliasTable()).ForHeader([]string{"Guarantor Name", "(GTI) Guarantor Name"})

	rec, _ := fm.Map([]string{"Legacy Bank", "Current Bank"})

	if rec.GuarantorName.String != "Current Bank" {
		t.Errorf("GuarantorName = %q, want Current Bank", rec.GuarantorName.String)
	}
}

func TestFileMapper_AllTypes(t *testing.T) {
	fm := NewMapper(DefaultAliasTable()).ForHeader([]string{
		"(GTI) System ID", "TREASURY FLAG", "(AMD) New Nominal Amount", "(AMD) New Expiry Date",
		"LC-Disclousure2-Subcategory", "(CF) Internal Reference",
	})

	rec, _ := fm.Map([]string{"G1", "Y", "-2,500", "5-Jan-2024", "Trade", " REF-1 "})

	if !rec.TreasuryFlag.Valid || !rec.TreasuryFlag.Bool {
		t.Errorf("TreasuryFlag = %+v, want true", rec.TreasuryFlag)
	}
	if got := FormatDecimal(rec.NewNominalAmount); got != "-2500" {
		t.Errorf("NewNominalAmount = %q, want -2500", got)
	}
	if got := FormatDate(rec.NewExpiryDate); got != "2024-01-05" {
		t.Errorf("NewExpiryDate = %q, want 2024-01-05", got)
	}
	if rec.LcDisclosure2Subcategory.String != "Trade" {
		t.Errorf("LcDisclosure2Subcategory = %q, want Trade", rec.LcDisclosure2Subcategory.String)
	}
	if rec.InternalReference.String != "REF-1" {
		t.Errorf("InternalReference = %q, want REF-1", rec.InternalReference.String)
	}
}

func TestMapper_ForHeaderResolved(t *testing.T) {
	m := NewMapper(DefaultAliasTable())

	if got := m.ForHeader([]string{"foo", "bar"}).Resolved(); got != 0 {
		t.Errorf("Resolved() = %d, want 0", got)
	}
	if got := m.ForHeader([]string{"System ID", "gti system id", "Category"}).Resolved(); got != 2 {
		t.Errorf("Resolved() = %d, want 2", got)
	}
}

func TestFileMapper_DuplicateHeaderLastColumnWins(t *testing.T) {
	fm := NewMapper(DefaultAliasTable()).ForHeader([]string{
		"(GTI) System ID", "(GTI) Actual Amount", "(GTI) Actual Amount",
	})

	rec, _ := fm.Map([]string{"D1", "1", "2"})

	if got := FormatDecimal(rec.ActualAmount); got != "2" {
		t.Errorf("ActualAmount = %q, want 2 (rightmost duplicate column)", got)
	}
}
