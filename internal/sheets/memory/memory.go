package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "rentsplit/internal/sheets"
)

// Exporter collects statement lines in memory. It stands in for the Google
// exporter in tests and local runs.
type Exporter struct {
	mu         sync.Mutex
	statements [][]ports.StatementLine
	// returned once by the next AppendStatement call
	failNext error
}

var _ ports.StatementExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// AppendStatement stores the lines and returns a synthetic reference.
func (e *Exporter) AppendStatement(_ context.Context, lines []ports.StatementLine) (string, error) {
	if len(lines) == 0 {
		return "", errors.New("no statement lines")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.failNext; err != nil {
		e.failNext = nil
		return "", err
	}
	e.statements = append(e.statements, append([]ports.StatementLine(nil), lines...))
	return fmt.Sprintf("mem:%d", len(e.statements)), nil
}

// FailNext makes the next AppendStatement return err.
func (e *Exporter) FailNext(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = err
}

// Statements returns a copy of everything exported so far.
func (e *Exporter) Statements() [][]ports.StatementLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]ports.StatementLine, len(e.statements))
	for i, s := range e.statements {
		out[i] = append([]ports.StatementLine(nil), s...)
	}
	return out
}
