// Package report renders computed allocations as plain text.
//
// Both layouts are a content contract: other tools parse the saved files, so
// the section order and line shapes must stay stable.
package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rentsplit/internal/allocation"
	"rentsplit/internal/core"
	"rentsplit/internal/household"
)

// DefaultCurrency is the symbol printed before every amount.
const DefaultCurrency = "₹"

var paymentInstructions = []string{
	"1. Please pay your share by the 5th of each month",
	"2. Use UPI, Bank Transfer, or Cash",
	"3. Keep transaction ID for reference",
	"4. Notify if payment will be delayed",
}

var tips = []string{
	"- Split utilities equally or based on usage",
	"- Keep records of all payments",
	"- Set payment deadlines",
}

// Formatter renders calculations and payment reports. The zero value is not
// usable; create one with NewFormatter.
type Formatter struct {
	currency string
	printer  *message.Printer
}

// NewFormatter returns a Formatter printing amounts with the given currency
// symbol and English digit grouping. An empty symbol selects DefaultCurrency.
func NewFormatter(currency string) *Formatter {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Formatter{
		currency: currency,
		printer:  message.NewPrinter(language.English),
	}
}

// Money renders m as symbol + grouped two-decimal amount, e.g. "₹23,000.00".
// Only the whole part goes through the printer, so sums of any size stay exact.
func (f *Formatter) Money(m core.Money) string {
	sign := ""
	whole, frac := m.Cents/100, m.Cents%100
	if m.Cents < 0 {
		sign, whole, frac = "-", -whole, -frac
	}
	return f.currency + sign + f.printer.Sprintf("%d", whole) + fmt.Sprintf(".%02d", frac)
}

func (f *Formatter) roomSize(size float64) string {
	return f.printer.Sprintf("%.0f sq ft", size)
}

func (f *Formatter) shareLine(b *strings.Builder, width int, i int, result allocation.Result, s allocation.Share) {
	name := fmt.Sprintf("%d. %-*s", i+1, width, s.OccupantID)
	switch result.Policy {
	case core.PolicyByRoomSize:
		fmt.Fprintf(b, "%s %s (%s%%) = %s\n", name, f.roomSize(s.RoomSize), s.Percentage.StringFixed(1), f.Money(s.Amount))
	case core.PolicyByPercentage:
		fmt.Fprintf(b, "%s %s%% = %s\n", name, s.Percentage.StringFixed(1), f.Money(s.Amount))
	default:
		fmt.Fprintf(b, "%s %s\n", name, f.Money(s.Amount))
	}
}

// Calculation renders the calculation summary for one period. It reads s and
// r only.
func (f *Formatter) Calculation(s household.Snapshot, r allocation.Result, p core.Period) string {
	var b strings.Builder
	heavy := strings.Repeat("=", 60)
	light := strings.Repeat("-", 40)

	b.WriteString(heavy + "\n")
	fmt.Fprintf(&b, "RENT CALCULATION FOR %s %d\n", strings.ToUpper(p.MonthName()), p.Year)
	b.WriteString(heavy + "\n\n")

	b.WriteString("BASIC INFORMATION\n")
	b.WriteString(light + "\n")
	fmt.Fprintf(&b, "Monthly Rent:           %s\n", f.Money(s.Rent))
	fmt.Fprintf(&b, "Maintenance:            %s\n", f.Money(s.Maintenance))
	fmt.Fprintf(&b, "Security Deposit:       %s\n\n", f.Money(s.SecurityDeposit))

	if charges := s.Charges.All(); len(charges) > 0 {
		fmt.Fprintf(&b, "UTILITIES BREAKDOWN (Total: %s)\n", f.Money(s.Charges.Total()))
		b.WriteString(light + "\n")
		for _, c := range charges {
			fmt.Fprintf(&b, "%-20s %s  (%s)\n", c.Name, f.Money(c.Amount), c.SplitMethod)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "MONTHLY TOTAL: %s\n\n", f.Money(r.Total))

	if r.Policy == core.PolicyEqual {
		fmt.Fprintf(&b, "SPLIT TYPE: %s (%d tenants)\n", r.Policy.Label(), len(r.Shares))
	} else {
		fmt.Fprintf(&b, "SPLIT TYPE: %s\n", r.Policy.Label())
	}
	b.WriteString(light + "\n")
	for i, share := range r.Shares {
		f.shareLine(&b, 15, i, r, share)
	}

	fmt.Fprintf(&b, "\nSECURITY DEPOSIT PER TENANT: %s\n\n", f.Money(r.DepositPerOccupant))
	b.WriteString("TIPS:\n")
	for _, t := range tips {
		b.WriteString(t + "\n")
	}
	b.WriteString(heavy + "\n")
	return b.String()
}

// PaymentReport renders the payment report handed to occupants. generatedAt
// is printed verbatim; the formatter never reads the clock.
func (f *Formatter) PaymentReport(s household.Snapshot, r allocation.Result, p core.Period, generatedAt time.Time) string {
	var b strings.Builder
	heavy := strings.Repeat("=", 70)
	light := strings.Repeat("-", 70)

	b.WriteString(heavy + "\n")
	b.WriteString("RENT PAYMENT REPORT\n")
	b.WriteString(heavy + "\n\n")
	fmt.Fprintf(&b, "Period: %s\n", p)
	fmt.Fprintf(&b, "Generated on: %s\n\n", generatedAt.Format("2006-01-02 15:04"))

	b.WriteString("PAYMENT DETAILS\n")
	b.WriteString(light + "\n")
	fmt.Fprintf(&b, "Monthly Rent:           %s\n", f.Money(s.Rent))
	fmt.Fprintf(&b, "Maintenance:            %s\n", f.Money(s.Maintenance))
	fmt.Fprintf(&b, "Utilities:              %s\n\n", f.Money(s.Charges.Total()))

	b.WriteString("UTILITIES DETAILS\n")
	b.WriteString(light + "\n")
	charges := s.Charges.All()
	if len(charges) == 0 {
		b.WriteString("No utilities added\n")
	}
	for _, c := range charges {
		fmt.Fprintf(&b, "%-25s %s (%s)\n", c.Name, f.Money(c.Amount), c.SplitMethod)
	}
	b.WriteString(light + "\n")
	fmt.Fprintf(&b, "TOTAL MONTHLY:          %s\n\n", f.Money(r.Total))

	fmt.Fprintf(&b, "TENANT PAYMENT BREAKDOWN (%s)\n", r.Policy.Label())
	b.WriteString(light + "\n")
	for i, share := range r.Shares {
		f.shareLine(&b, 20, i, r, share)
	}

	fmt.Fprintf(&b, "\nSECURITY DEPOSIT PER TENANT: %s\n\n", f.Money(r.DepositPerOccupant))

	b.WriteString("PAYMENT INSTRUCTIONS\n")
	b.WriteString(light + "\n")
	for _, line := range paymentInstructions {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + heavy + "\n")
	return b.String()
}

// CalculationFilename names the saved calculation for p.
func CalculationFilename(p core.Period) string {
	return fmt.Sprintf("rent_calculation_%s_%d.txt", p.MonthName(), p.Year)
}

// ReportFilename names a payment report generated at t.
func ReportFilename(t time.Time) string {
	return "rent_report_" + t.Format("20060102_150405") + ".txt"
}
