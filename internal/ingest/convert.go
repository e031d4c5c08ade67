package ingest

// convert.go turns raw CSV cells into typed values.
//
// Every parser fails soft: an empty cell yields OutcomeAbsent and a cell that
// cannot be read yields OutcomeUnparseable, both with Valid=false. A bad cell
// only drops that one field; it never aborts the row or the file.
//
// Decimals are held in pgtype.Numeric (big.Int mantissa plus base-10
// exponent), so monetary amounts never pass through binary floating point.

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// decimalRegex validates a decimal, optionally in scientific notation, after
// thousands separators are removed.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayout is one entry of the ordered date format list.
type dateLayout struct {
	layout    string
	twoDigits bool
}

// dateLayouts are tried in order; the first layout that parses wins.
var dateLayouts = []dateLayout{
	{layout: "2006-01-02"},
	{layout: "1/2/2006"},
	{layout: "1/2/06", twoDigits: true},
	{layout: "2-Jan-2006"},
	{layout: "2-Jan-06", twoDigits: true},
	{layout: "Jan 2, 2006"},
}

// ParseText trims s. Empty text is absent, not an empty value.
func ParseText(s string) (pgtype.Text, Outcome) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}, OutcomeAbsent
	}
	return pgtype.Text{String: s, Valid: true}, OutcomeParsed
}

// ParseDecimal strips comma thousands separators and parses an exact decimal.
// An exponent such as "1.5E+3" is folded into the scale, never into a float.
func ParseDecimal(s string) (pgtype.Numeric, Outcome) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{}, OutcomeAbsent
	}

	s = strings.ReplaceAll(s, ",", "")
	if !decimalRegex.MatchString(s) {
		return pgtype.Numeric{}, OutcomeUnparseable
	}

	mantissa, exp := s, int64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil {
			return pgtype.Numeric{}, OutcomeUnparseable
		}
		mantissa, exp = s[:i], e
	}

	// The scale is the number of written fraction digits, so "1000.00"
	// keeps both zeros.
	whole, frac, _ := strings.Cut(mantissa, ".")
	digits, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return pgtype.Numeric{}, OutcomeUnparseable
	}

	exp -= int64(len(frac))
	if exp < math.MinInt32 || exp > math.MaxInt32 {
		return pgtype.Numeric{}, OutcomeUnparseable
	}
	n := pgtype.Numeric{Int: digits, Exp: int32(exp), Valid: true}
	return n, OutcomeParsed
}

// ParseDate tries each layout of dateLayouts in order.
func ParseDate(s string) (pgtype.Date, Outcome) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}, OutcomeAbsent
	}

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		// Two-digit years always mean 2000-2099; layout "06" maps 69-99 to 19xx.
		if l.twoDigits && t.Year() < 2000 {
			t = t.AddDate(100, 0, 0)
		}
		return pgtype.Date{Time: t, Valid: true}, OutcomeParsed
	}
	return pgtype.Date{}, OutcomeUnparseable
}

// ParseBool accepts y/yes/true/1/t and n/no/false/0/f in any case.
// Other text is unparseable so that a malformed flag never aborts the row.
func ParseBool(s string) (pgtype.Bool, Outcome) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{}, OutcomeAbsent
	}

	switch s {
	case "y", "yes", "true", "1", "t":
		return pgtype.Bool{Bool: true, Valid: true}, OutcomeParsed
	case "n", "no", "false", "0", "f":
		return pgtype.Bool{Bool: false, Valid: true}, OutcomeParsed
	default:
		return pgtype.Bool{}, OutcomeUnparseable
	}
}

// FormatDecimal renders n as a plain decimal string keeping its scale,
// e.g. "1000.00" or "-0.05". It returns "" for an invalid value.
func FormatDecimal(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil || n.NaN || n.InfinityModifier != pgtype.Finite {
		return ""
	}

	digits := new(big.Int).Abs(n.Int).String()
	sign := ""
	if n.Int.Sign() < 0 {
		sign = "-"
	}

	exp := int(n.Exp)
	switch {
	case exp > 0:
		if digits == "0" {
			return "0"
		}
		return sign + digits + strings.Repeat("0", exp)
	case exp < 0:
		scale := -exp
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		point := len(digits) - scale
		return sign + digits[:point] + "." + digits[point:]
	default:
		return sign + digits
	}
}

// FormatDate renders a valid date as YYYY-MM-DD, or "" when absent.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}
