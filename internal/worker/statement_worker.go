package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentsplit/internal/amqp"
	"rentsplit/internal/cache"
	"rentsplit/internal/sheets"
)

// processedTTL bounds how long a redelivered statement is recognised as a
// duplicate.
const processedTTL = 24 * time.Hour

// StatementWorker exports statement messages to a spreadsheet.
type StatementWorker struct {
	exporter  sheets.StatementExporter
	processed *cache.LRUCache[string]
}

func NewStatementWorker(exporter sheets.StatementExporter) *StatementWorker {
	return &StatementWorker{
		exporter:  exporter,
		processed: cache.NewLRUCache[string](1024, processedTTL),
	}
}

// RegisterCaches hands the duplicate tracker to m for periodic expiry.
func (w *StatementWorker) RegisterCaches(m *cache.Manager) {
	m.Register(w.processed)
}

// Lines converts a message into one exported line per occupant.
func Lines(msg *amqp.StatementMessage) []sheets.StatementLine {
	period := msg.PeriodValue()
	lines := make([]sheets.StatementLine, 0, len(msg.Shares))
	for _, s := range msg.Shares {
		lines = append(lines, sheets.StatementLine{
			Year:        period.Year,
			Period:      period.String(),
			Occupant:    s.OccupantID,
			Share:       s.Amount,
			Policy:      msg.Policy,
			Percentage:  s.Percentage,
			Deposit:     msg.DepositPerOccupant,
			GeneratedAt: msg.GeneratedAt,
		})
	}
	return lines
}

func messageKey(msg *amqp.StatementMessage) string {
	return fmt.Sprintf("%04d-%02d/%s/%s", msg.Period.Year, msg.Period.Month, msg.Policy, msg.GeneratedAt.UTC().Format(time.RFC3339Nano))
}

// HandleStatement processes a single statement message from AMQP. A message
// already exported (same period, policy and generation time) is acknowledged
// without exporting it again.
func (w *StatementWorker) HandleStatement(ctx context.Context, msg *amqp.StatementMessage) error {
	key := messageKey(msg)
	if ref, ok := w.processed.Get(key); ok {
		slog.InfoContext(ctx, "Statement already exported, skipping", "key", key, "sheets_ref", ref)
		return nil
	}

	ref, err := w.exporter.AppendStatement(ctx, Lines(msg))
	if err != nil {
		return fmt.Errorf("export statement: %w", err)
	}
	w.processed.Set(key, ref)

	slog.InfoContext(ctx, "Statement exported",
		"period", msg.PeriodValue().String(),
		"policy", msg.Policy,
		"rows", len(msg.Shares),
		"sheets_ref", ref)
	return nil
}
