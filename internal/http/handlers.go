package http

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"rentsplit/internal/allocation"
	"rentsplit/internal/core"
	"rentsplit/internal/household"
	"rentsplit/internal/log"
	"rentsplit/internal/services"
	"rentsplit/internal/storage"
)

type occupantView struct {
	Name       string  `json:"name"`
	RoomSize   float64 `json:"room_size"`
	Percentage float64 `json:"percentage"`
}

type chargeView struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	SplitMethod string `json:"split_method"`
	Notes       string `json:"notes"`
}

type snapshotView struct {
	Rent            string         `json:"rent_amount"`
	SecurityDeposit string         `json:"security_deposit"`
	Maintenance     string         `json:"maintenance"`
	MonthlyTotal    string         `json:"monthly_total"`
	Policy          string         `json:"split_type"`
	PolicyLabel     string         `json:"split_label"`
	Occupants       []occupantView `json:"tenants"`
	Charges         []chargeView   `json:"utilities"`
}

type shareView struct {
	Name       string  `json:"name"`
	Amount     string  `json:"amount"`
	RoomSize   float64 `json:"room_size,omitempty"`
	Percentage string  `json:"percentage,omitempty"`
}

type calculationView struct {
	Period             string      `json:"period"`
	Month              int         `json:"month"`
	Year               int         `json:"year"`
	Policy             string      `json:"split_type"`
	Total              string      `json:"monthly_total"`
	DepositPerOccupant string      `json:"deposit_per_tenant"`
	Shares             []shareView `json:"shares"`
	Text               string      `json:"text"`
}

type statementView struct {
	ID        int64  `json:"id"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	Policy    string `json:"split_type"`
	Total     string `json:"monthly_total"`
	CreatedAt string `json:"created_at"`
}

func newOccupantViews(occupants []core.Occupant) []occupantView {
	out := make([]occupantView, 0, len(occupants))
	for _, o := range occupants {
		out = append(out, occupantView{Name: o.ID, RoomSize: o.RoomSize, Percentage: o.Percentage})
	}
	return out
}

func newChargeViews(charges []core.Charge) []chargeView {
	out := make([]chargeView, 0, len(charges))
	for _, c := range charges {
		out = append(out, chargeView{Name: c.Name, Amount: c.Amount.String(), SplitMethod: string(c.SplitMethod), Notes: c.Note})
	}
	return out
}

func newSnapshotView(snap household.Snapshot) snapshotView {
	return snapshotView{
		Rent:            snap.Rent.String(),
		SecurityDeposit: snap.SecurityDeposit.String(),
		Maintenance:     snap.Maintenance.String(),
		MonthlyTotal:    snap.MonthlyTotal().String(),
		Policy:          string(snap.Policy),
		PolicyLabel:     snap.Policy.Label(),
		Occupants:       newOccupantViews(snap.Occupants.All()),
		Charges:         newChargeViews(snap.Charges.All()),
	}
}

func newCalculationView(calc services.Calculation) calculationView {
	r := calc.Result
	v := calculationView{
		Period:             calc.Period.String(),
		Month:              calc.Period.Month,
		Year:               calc.Period.Year,
		Policy:             string(r.Policy),
		Total:              r.Total.String(),
		DepositPerOccupant: r.DepositPerOccupant.String(),
		Shares:             make([]shareView, 0, len(r.Shares)),
		Text:               calc.Text,
	}
	for _, s := range r.Shares {
		v.Shares = append(v.Shares, newShareView(r.Policy, s))
	}
	return v
}

func newShareView(p core.Policy, s allocation.Share) shareView {
	v := shareView{Name: s.OccupantID, Amount: s.Amount.String()}
	switch p {
	case core.PolicyByRoomSize:
		v.RoomSize = s.RoomSize
		v.Percentage = s.Percentage.StringFixed(1)
	case core.PolicyByPercentage:
		v.Percentage = s.Percentage.StringFixed(1)
	}
	return v
}

func newStatementViews(entries []storage.StatementEntry) []statementView {
	out := make([]statementView, 0, len(entries))
	for _, e := range entries {
		out = append(out, statementView{
			ID:        e.ID,
			Month:     e.Month,
			Year:      e.Year,
			Policy:    e.Policy,
			Total:     core.Money{Cents: e.TotalCents}.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

// fail logs err and writes the matching error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.sl.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, log.NewFields())
		if id := log.RequestID(r.Context()); id != "" && resp.statusCode == http.StatusInternalServerError {
			resp = InternalServerError("internal error, request " + id)
		}
	} else {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, op, log.FieldError, err)
	}
	resp.Write(w)
}

// parseBody parses the request body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body: " + err.Error()).Write(w)
		return nil, false
	}
	return p, true
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the snapshot loaded cleanly. A corrupt record
// does not make the server unready; it is reported as a warning.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{
		"cache": map[string]any{
			"calculation_entries": s.svc.CachedTexts(),
			"status":              "ok",
		},
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		},
	}
	if err := s.svc.LoadWarning(); err != nil {
		checks["snapshot"] = "warning: " + err.Error()
	} else {
		checks["snapshot"] = "ok"
	}

	NewResponse().JSON(map[string]any{
		"status":    "ready",
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(&b, "%s %v\n\n", name, value)
	}
	metric("http_requests_total", "Total number of API requests", "counter", atomic.LoadInt64(&s.requests))
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", atomic.LoadInt64(&s.metrics.rateLimitHits))
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", atomic.LoadInt64(&s.metrics.suspiciousRequests))
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", s.rateLimiter.ActiveClients())
	metric("calculation_cache_entries", "Cached calculation texts", "gauge", s.svc.CachedTexts())
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", s.now().Sub(s.startedAt).Seconds()))

	NewResponse().Text(b.String()).Write(w)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	NewResponse().JSON(newSnapshotView(s.svc.Snapshot())).Write(w)
}

// handleBasics updates rent, security deposit and maintenance. Omitted fields
// keep their current value.
func (s *Server) handleBasics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPut, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	snap := s.svc.Snapshot()
	fields := []struct {
		key string
		dst *core.Money
	}{
		{"rent_amount", &snap.Rent},
		{"security_deposit", &snap.SecurityDeposit},
		{"maintenance", &snap.Maintenance},
	}
	for _, f := range fields {
		m, present, err := p.Money(f.key)
		if err != nil {
			s.fail(w, r, log.OpUpdate, err)
			return
		}
		if present {
			*f.dst = m
		}
	}

	s.svc.SetBasics(snap.Rent, snap.SecurityDeposit, snap.Maintenance)
	NewResponse().JSON(newSnapshotView(s.svc.Snapshot())).Write(w)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPut, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	if !p.Has("split_type") {
		s.fail(w, r, log.OpUpdate, &core.ValidationError{Field: "policy", Err: core.ErrInvalidPolicy})
		return
	}
	policy, err := core.ParsePolicy(p.Get("split_type"))
	if err == nil {
		err = s.svc.SetPolicy(policy)
	}
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(map[string]string{
		"split_type":  string(policy),
		"split_label": policy.Label(),
	}).Write(w)
}

func (s *Server) handleOccupants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		NewResponse().JSON(newOccupantViews(s.svc.Snapshot().Occupants.All())).Write(w)

	case http.MethodPost:
		p, ok := parseBody(w, r)
		if !ok {
			return
		}
		room, err := p.Float("room_size")
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		pct, err := p.Float("percentage")
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}

		o := core.Occupant{ID: p.Get("name"), RoomSize: room, Percentage: pct}
		replaced, err := s.svc.AddOccupant(o)
		if err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		status := http.StatusCreated
		if replaced {
			status = http.StatusOK
		}
		NewResponse().Status(status).JSON(map[string]any{
			"name":     strings.TrimSpace(o.ID),
			"replaced": replaced,
		}).Write(w)

	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			BadRequestError("missing name").Write(w)
			return
		}
		n := s.svc.RemoveOccupant(name)
		if n == 0 {
			NotFoundError("no tenant named " + name).Write(w)
			return
		}
		NewResponse().JSON(map[string]int{"removed": n}).Write(w)

	default:
		MethodNotAllowedError("GET, POST, DELETE").Write(w)
	}
}

func (s *Server) handleCharges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		NewResponse().JSON(newChargeViews(s.svc.Snapshot().Charges.All())).Write(w)

	case http.MethodPost:
		p, ok := parseBody(w, r)
		if !ok {
			return
		}
		amount, present, err := p.Money("amount")
		if err == nil && !present {
			err = &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
		}
		if err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		method, err := core.ParseSplitMethod(p.Get("split_method"))
		if err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}

		c := core.Charge{Name: p.Get("name"), Amount: amount, SplitMethod: method, Note: p.Get("notes")}
		if err := s.svc.AddCharge(c); err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		NewResponse().Status(http.StatusCreated).JSON(newChargeViews([]core.Charge{c})[0]).Write(w)

	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			BadRequestError("missing name").Write(w)
			return
		}
		if !s.svc.RemoveCharge(name) {
			NotFoundError("no utility named " + name).Write(w)
			return
		}
		NewResponse().JSON(map[string]string{"removed": name}).Write(w)

	default:
		MethodNotAllowedError("GET, POST, DELETE").Write(w)
	}
}

func (s *Server) handleQuickCharges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		NewResponse().JSON(newChargeViews(services.QuickPresets())).Write(w)

	case http.MethodPost:
		p, ok := parseBody(w, r)
		if !ok {
			return
		}
		c, err := s.svc.QuickAddCharge(p.Get("name"))
		if err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		NewResponse().Status(http.StatusCreated).JSON(newChargeViews([]core.Charge{c})[0]).Write(w)

	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// withPeriod runs fn with the period from the query string.
func (s *Server) withPeriod(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, p core.Period)) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	fn(r.Context(), p)
}

// handleCalculation returns the calculation for ?month=&year=. POST also
// writes it to the output directory.
func (s *Server) handleCalculation(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	s.withPeriod(w, r, log.OpCalculate, func(ctx context.Context, p core.Period) {
		if r.Method == http.MethodPost {
			path, err := s.svc.SaveCalculation(ctx, p)
			if err != nil {
				s.fail(w, r, log.OpCalculate, err)
				return
			}
			NewResponse().Status(http.StatusCreated).JSON(map[string]string{"file": filepath.Base(path)}).Write(w)
			return
		}

		calc, err := s.svc.Calculate(ctx, p)
		if err != nil {
			s.fail(w, r, log.OpCalculate, err)
			return
		}
		NewResponse().JSON(newCalculationView(calc)).Write(w)
	})
}

// handleReport returns the payment report for ?month=&year=. POST also
// writes it to the output directory and the statement history.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	s.withPeriod(w, r, log.OpReport, func(ctx context.Context, p core.Period) {
		if r.Method == http.MethodPost {
			path, err := s.svc.SaveReport(ctx, p)
			if err != nil {
				s.fail(w, r, log.OpReport, err)
				return
			}
			NewResponse().Status(http.StatusCreated).JSON(map[string]string{"file": filepath.Base(path)}).Write(w)
			return
		}

		rep, err := s.svc.Report(ctx, p)
		if err != nil {
			s.fail(w, r, log.OpReport, err)
			return
		}
		NewResponse().JSON(newCalculationView(rep)).Write(w)
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.svc.Save(r.Context()); err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}
	NewResponse().JSON(map[string]string{"status": "saved"}).Write(w)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.svc.Clear(r.Context()); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().JSON(newSnapshotView(s.svc.Snapshot())).Write(w)
}

// handleStatements lists saved reports for a period (GET) or publishes the
// statement of a period to the message broker (POST).
func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	s.withPeriod(w, r, log.OpPublish, func(ctx context.Context, p core.Period) {
		if r.Method == http.MethodPost {
			msg, err := s.svc.PublishStatement(ctx, p)
			if err != nil {
				s.fail(w, r, log.OpPublish, err)
				return
			}
			NewResponse().Status(http.StatusAccepted).JSON(msg).Write(w)
			return
		}

		entries, err := s.svc.Statements(ctx, p)
		if err != nil {
			s.fail(w, r, log.OpRead, err)
			return
		}
		NewResponse().JSON(newStatementViews(entries)).Write(w)
	})
}
