// Package money implements integer-cent currency arithmetic for ZAR amounts.
//
// All monetary values in the system are stored and computed as integer cents;
// fractions only appear transiently inside percentage multiplication, which is
// done with shopspring/decimal and rounded half-up to the nearest cent.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a ZAR amount in integer cents. Clawback ledger entries are
// negative; everything else is positive.
type Cents int64

// SA standard VAT rate per the VAT Act.
const vatRate = "0.15"

// ApplyPct multiplies an amount by a fractional percentage (0.10 = 10%) and
// rounds half-up to the nearest cent. decimal.Round rounds half away from
// zero, which is half-up for the non-negative bases used here.
func ApplyPct(amount Cents, pct float64) Cents {
	result := decimal.NewFromInt(int64(amount)).
		Mul(decimal.NewFromFloat(pct)).
		Round(0)
	return Cents(result.IntPart())
}

// ApplyPctPoints multiplies by a whole-number percentage (50 = 50%),
// rounding half-up. Used by the clawback table.
func ApplyPctPoints(amount Cents, points int) Cents {
	result := decimal.NewFromInt(int64(amount)).
		Mul(decimal.NewFromInt(int64(points))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return Cents(result.IntPart())
}

// CalculateVAT returns the VAT portion on a VAT-exclusive amount.
func CalculateVAT(amountExcl Cents) Cents {
	vat := decimal.NewFromInt(int64(amountExcl)).
		Mul(decimal.RequireFromString(vatRate)).
		Round(0)
	return Cents(vat.IntPart())
}

// AddVAT returns the VAT-inclusive amount.
func AddVAT(amountExcl Cents) Cents {
	return amountExcl + CalculateVAT(amountExcl)
}

// ExtractVAT returns the VAT portion contained in a VAT-inclusive amount.
func ExtractVAT(amountIncl Cents) Cents {
	rate := decimal.RequireFromString(vatRate)
	vat := decimal.NewFromInt(int64(amountIncl)).
		Mul(rate).
		Div(rate.Add(decimal.NewFromInt(1))).
		Round(0)
	return Cents(vat.IntPart())
}

// FormatZAR renders cents as a rand string with space-grouped thousands,
// e.g. 123456789 -> "R 1 234 567.89". Negative amounts keep the sign ahead
// of the currency symbol, matching the ledger exports.
func FormatZAR(amount Cents) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	rands := int64(amount) / 100
	cents := int64(amount) % 100
	return fmt.Sprintf("%sR %s.%02d", sign, groupThousands(rands), cents)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
