package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rentsplit/internal/allocation"
	"rentsplit/internal/amqp"
	"rentsplit/internal/cache"
	"rentsplit/internal/core"
	"rentsplit/internal/household"
	"rentsplit/internal/log"
	"rentsplit/internal/report"
	"rentsplit/internal/storage"
)

var (
	// ErrPublishingDisabled is returned by PublishStatement when no AMQP
	// publisher is configured.
	ErrPublishingDisabled = errors.New("statement publishing is disabled")
	ErrUnknownPreset      = errors.New("unknown quick-add preset")
)

// StatementPublisher sends computed statements downstream.
type StatementPublisher interface {
	PublishStatement(ctx context.Context, msg *amqp.StatementMessage) error
}

// Options wires a HouseholdService. Store is required.
type Options struct {
	Store     storage.SnapshotStore
	Publisher StatementPublisher
	Formatter *report.Formatter
	OutputDir string
	Logger    *log.Logger
	Now       func() time.Time
}

// Calculation is a computed allocation with its rendered text.
type Calculation struct {
	Period core.Period
	Result allocation.Result
	Text   string
}

// HouseholdService owns the in-memory snapshot. Every operation holds one
// mutex, so mutations, computations and persistence always see both
// collections in a consistent state.
type HouseholdService struct {
	mu       sync.Mutex
	snap     household.Snapshot
	revision uint64

	store     storage.SnapshotStore
	publisher StatementPublisher
	formatter *report.Formatter
	outputDir string
	logger    *log.Logger
	sl        *log.StructuredLogger
	now       func() time.Time

	// rendered calculation texts keyed by revision and period
	texts       *cache.LRUCache[string]
	loadWarning error
}

// NewHouseholdService loads the stored snapshot. A missing or unreadable
// record is not fatal: the service starts from the default snapshot and
// LoadWarning reports what went wrong.
func NewHouseholdService(ctx context.Context, opts Options) (*HouseholdService, error) {
	if opts.Store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if opts.Formatter == nil {
		opts.Formatter = report.NewFormatter("")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(log.ComponentHousehold)

	s := &HouseholdService{
		store:     opts.Store,
		publisher: opts.Publisher,
		formatter: opts.Formatter,
		outputDir: opts.OutputDir,
		logger:    logger,
		sl:        log.NewStructuredLogger(logger),
		now:       opts.Now,
		texts:     cache.NewLRUCache[string](64, time.Hour),
	}
	s.loadLocked(ctx)
	return s, nil
}

func (s *HouseholdService) loadLocked(ctx context.Context) {
	snap, err := s.store.Load(ctx)
	s.loadWarning = err
	if err != nil {
		s.logger.WarnContext(ctx, "Snapshot could not be loaded, starting from defaults",
			log.FieldError, err,
			log.FieldOperation, log.OpLoad)
		snap = household.Default()
	}
	s.snap = snap
	s.touchLocked()
}

// touchLocked invalidates everything derived from the snapshot.
func (s *HouseholdService) touchLocked() {
	s.revision++
}

// LoadWarning returns the error from the last load, if any.
func (s *HouseholdService) LoadWarning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadWarning
}

// Snapshot returns a copy of the current snapshot.
func (s *HouseholdService) Snapshot() household.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Reload discards in-memory changes and reads the stored snapshot again.
func (s *HouseholdService) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
	return s.loadWarning
}

// SetBasics sets rent, security deposit and maintenance.
func (s *HouseholdService) SetBasics(rent, deposit, maintenance core.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Rent = rent
	s.snap.SecurityDeposit = deposit
	s.snap.Maintenance = maintenance
	s.touchLocked()
}

// SetPolicy changes the allocation policy. Occupants keep their attributes.
func (s *HouseholdService) SetPolicy(p core.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Policy = p
	s.touchLocked()
	return nil
}

// AddOccupant validates o against the current policy and appends it. An
// occupant with the same id is replaced; the replacement goes to the end.
// It reports whether an existing occupant was replaced.
func (s *HouseholdService) AddOccupant(o core.Occupant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := o.Validate(s.snap.Policy); err != nil {
		return false, err
	}
	replaced := s.snap.Occupants.Remove(o.ID) > 0
	if err := s.snap.AddOccupant(o); err != nil {
		return false, err
	}
	s.touchLocked()
	s.logger.Debug("Occupant added", log.FieldOccupantID, strings.TrimSpace(o.ID), "replaced", replaced)
	return replaced, nil
}

// RemoveOccupant removes every occupant with id and returns how many were
// removed.
func (s *HouseholdService) RemoveOccupant(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.snap.Occupants.Remove(id)
	if n > 0 {
		s.touchLocked()
	}
	return n
}

// AddCharge adds or replaces a charge.
func (s *HouseholdService) AddCharge(c core.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.snap.Charges.Add(c); err != nil {
		return err
	}
	s.touchLocked()
	s.logger.Debug("Charge added", log.FieldChargeName, c.Name, log.FieldAmountCents, c.Amount.Cents)
	return nil
}

// QuickAddCharge adds one of the preset utilities with its default amount.
func (s *HouseholdService) QuickAddCharge(name string) (core.Charge, error) {
	for _, p := range QuickPresets() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, s.AddCharge(p)
		}
	}
	return core.Charge{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// QuickPresets lists the common utilities offered for quick entry.
func QuickPresets() []core.Charge {
	return []core.Charge{
		{Name: "Electricity", Amount: core.MustParseMoney("1500"), SplitMethod: core.SplitEqual},
		{Name: "Water", Amount: core.MustParseMoney("500"), SplitMethod: core.SplitEqual},
		{Name: "Internet", Amount: core.MustParseMoney("1000"), SplitMethod: core.SplitEqual},
		{Name: "Gas", Amount: core.MustParseMoney("400"), SplitMethod: core.SplitEqual},
		{Name: "Cable TV", Amount: core.MustParseMoney("300"), SplitMethod: core.SplitEqual},
	}
}

// RemoveCharge removes the named charge and reports whether it existed.
func (s *HouseholdService) RemoveCharge(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.snap.Charges.Remove(name)
	if ok {
		s.touchLocked()
	}
	return ok
}

// Save persists the current snapshot.
func (s *HouseholdService) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *HouseholdService) saveLocked(ctx context.Context) error {
	if err := s.store.Save(ctx, s.snap); err != nil {
		s.sl.LogError(ctx, "Snapshot save failed", err, log.ComponentStorage, log.OpSave, log.NewFields())
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "Snapshot saved",
		log.FieldOccupants, s.snap.Occupants.Len(),
		log.FieldTotalCents, s.snap.MonthlyTotal().Cents)
	return nil
}

// Clear resets to the default snapshot and persists it. When persisting
// fails the in-memory snapshot stays cleared.
func (s *HouseholdService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = household.Default()
	s.touchLocked()
	s.texts.Purge()
	return s.saveLocked(ctx)
}

// computeLocked checks the preconditions every computation shares: a valid
// period and a positive rent.
func (s *HouseholdService) computeLocked(ctx context.Context, p core.Period) (allocation.Result, error) {
	if err := p.Validate(); err != nil {
		return allocation.Result{}, err
	}
	if err := s.snap.Rent.Validate(); err != nil {
		return allocation.Result{}, &core.ValidationError{Field: "rent", Err: err}
	}
	r, err := allocation.Compute(s.snap)
	if err != nil {
		return allocation.Result{}, err
	}
	s.sl.LogAllocationComputed(ctx, p.String(), string(r.Policy), len(r.Shares), r.Total.Cents)
	return r, nil
}

// Calculate computes the allocation for p and renders the calculation text.
// The rent must be positive.
func (s *HouseholdService) Calculate(ctx context.Context, p core.Period) (Calculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.computeLocked(ctx, p)
	if err != nil {
		return Calculation{}, err
	}

	key := fmt.Sprintf("calc/%d/%04d-%02d", s.revision, p.Year, p.Month)
	text, ok := s.texts.Get(key)
	if !ok {
		text = s.formatter.Calculation(s.snap, r, p)
		s.texts.Set(key, text)
	}
	return Calculation{Period: p, Result: r, Text: text}, nil
}

// Report computes the allocation for p and renders the payment report,
// stamped with the current time.
func (s *HouseholdService) Report(ctx context.Context, p core.Period) (Calculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportLocked(ctx, p, s.now())
}

func (s *HouseholdService) reportLocked(ctx context.Context, p core.Period, at time.Time) (Calculation, error) {
	r, err := s.computeLocked(ctx, p)
	if err != nil {
		return Calculation{}, err
	}
	return Calculation{Period: p, Result: r, Text: s.formatter.PaymentReport(s.snap, r, p, at)}, nil
}

// SaveCalculation writes the calculation text for p to the output directory
// and returns the file path.
func (s *HouseholdService) SaveCalculation(ctx context.Context, p core.Period) (string, error) {
	calc, err := s.Calculate(ctx, p)
	if err != nil {
		return "", err
	}
	return s.writeArtifact(ctx, report.CalculationFilename(p), calc.Text)
}

// SaveReport writes the payment report for p to the output directory and,
// when the store keeps a statement history, records it there.
func (s *HouseholdService) SaveReport(ctx context.Context, p core.Period) (string, error) {
	at, calc, err := func() (time.Time, Calculation, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		at := s.now()
		calc, err := s.reportLocked(ctx, p, at)
		return at, calc, err
	}()
	if err != nil {
		return "", err
	}

	path, err := s.writeArtifact(ctx, report.ReportFilename(at), calc.Text)
	if err != nil {
		return "", err
	}

	if hist, ok := s.store.(storage.StatementLog); ok {
		_, err := hist.RecordStatement(ctx, storage.StatementEntry{
			Year:       p.Year,
			Month:      p.Month,
			Policy:     string(calc.Result.Policy),
			TotalCents: calc.Result.Total.Cents,
			Body:       calc.Text,
			CreatedAt:  at,
		})
		if err != nil {
			// the file is written; history is best effort
			s.logger.WarnContext(ctx, "Statement history not updated", log.FieldError, err)
		}
	}
	return path, nil
}

// Statements returns the stored report history for p, or nil when the store
// keeps none.
func (s *HouseholdService) Statements(ctx context.Context, p core.Period) ([]storage.StatementEntry, error) {
	hist, ok := s.store.(storage.StatementLog)
	if !ok {
		return nil, nil
	}
	return hist.ListStatements(ctx, p.Year, p.Month)
}

func (s *HouseholdService) writeArtifact(ctx context.Context, name, text string) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(s.outputDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Artifact written", log.FieldFile, path)
	return path, nil
}

// PublishStatement computes the allocation for p and publishes it.
func (s *HouseholdService) PublishStatement(ctx context.Context, p core.Period) (*amqp.StatementMessage, error) {
	if s.publisher == nil {
		return nil, ErrPublishingDisabled
	}

	r, at, err := func() (allocation.Result, time.Time, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		r, err := s.computeLocked(ctx, p)
		return r, s.now(), err
	}()
	if err != nil {
		return nil, err
	}

	msg := amqp.NewStatementMessage(r, p, at)
	if err := s.publisher.PublishStatement(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish statement: %w", err)
	}
	return msg, nil
}

// RegisterCaches hands the service caches to m for periodic expiry.
func (s *HouseholdService) RegisterCaches(m *cache.Manager) {
	m.Register(s.texts)
}

// CachedTexts reports how many rendered calculations are cached.
func (s *HouseholdService) CachedTexts() int {
	return s.texts.Size()
}

// Close releases the store.
func (s *HouseholdService) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
