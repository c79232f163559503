package sheets

import (
	"context"
	"time"
)

// StatementLine is one exported row: an occupant's share for a period.
type StatementLine struct {
	Year        int
	Period      string
	Occupant    string
	Share       string
	Policy      string
	Percentage  string
	Deposit     string
	GeneratedAt time.Time
}

// Values returns the spreadsheet cells for the line, in column order.
func (l StatementLine) Values() []any {
	return []any{
		l.Period,
		l.Occupant,
		l.Share,
		l.Policy,
		l.Percentage,
		l.Deposit,
		l.GeneratedAt.Format("2006-01-02 15:04"),
	}
}

// Ports for outbound adapters.
type (
	// StatementExporter appends statement lines to an external sheet. All
	// lines of one call belong to the same statement.
	StatementExporter interface {
		AppendStatement(ctx context.Context, lines []StatementLine) (rowRef string, err error)
	}
)
