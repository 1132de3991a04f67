package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.French)

// fr groups thousands with a narrow or regular no-break space depending on the
// CLDR release; exports use a plain space.
var groupSpaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

// FormatMoney renders an amount in the fr-DZ style used on exports:
// thousands separated by a space, comma decimal separator, trailing label.
//
//	FormatMoney(decimal.RequireFromString("1234.5"), "DZD") == "1 234,50 DZD"
func FormatMoney(amount decimal.Decimal, label string) string {
	rounded := amount.Abs().Round(2)
	_, frac, _ := strings.Cut(rounded.StringFixed(2), ".")
	whole := groupSpaces.Replace(moneyPrinter.Sprint(number.Decimal(rounded.IntPart())))

	var b strings.Builder
	if amount.IsNegative() && !rounded.IsZero() {
		b.WriteByte('-')
	}
	b.WriteString(whole)
	b.WriteByte(',')
	b.WriteString(frac)
	if label != "" {
		b.WriteByte(' ')
		b.WriteString(label)
	}
	return b.String()
}
