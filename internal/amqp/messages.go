package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentsplit/internal/allocation"
	"rentsplit/internal/core"
)

type StatementPeriod struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// StatementShare is one occupant line. Amounts travel as two-decimal strings
// so consumers never see float rounding.
type StatementShare struct {
	OccupantID string `json:"occupant_id"`
	Amount     string `json:"amount"`
	Percentage string `json:"percentage,omitempty"`
}

// StatementMessage carries a computed allocation to the export worker.
type StatementMessage struct {
	Period             StatementPeriod  `json:"period"`
	Policy             string           `json:"policy"`
	Total              string           `json:"total"`
	DepositPerOccupant string           `json:"deposit_per_occupant"`
	Shares             []StatementShare `json:"shares"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// NewStatementMessage builds the message for result r of period p.
func NewStatementMessage(r allocation.Result, p core.Period, generatedAt time.Time) *StatementMessage {
	msg := &StatementMessage{
		Period:             StatementPeriod{Month: p.Month, Year: p.Year},
		Policy:             string(r.Policy),
		Total:              r.Total.String(),
		DepositPerOccupant: r.DepositPerOccupant.String(),
		Shares:             make([]StatementShare, 0, len(r.Shares)),
		GeneratedAt:        generatedAt,
	}
	for _, s := range r.Shares {
		share := StatementShare{OccupantID: s.OccupantID, Amount: s.Amount.String()}
		if r.Policy != core.PolicyEqual {
			share.Percentage = s.Percentage.StringFixed(2)
		}
		msg.Shares = append(msg.Shares, share)
	}
	return msg
}

// PeriodValue returns the message period as a core.Period.
func (m *StatementMessage) PeriodValue() core.Period {
	return core.Period{Month: m.Period.Month, Year: m.Period.Year}
}

// Validate checks that a decoded message is usable by the exporter.
func (m *StatementMessage) Validate() error {
	if err := m.PeriodValue().Validate(); err != nil {
		return err
	}
	if _, err := core.ParsePolicy(m.Policy); err != nil {
		return err
	}
	if len(m.Shares) == 0 {
		return core.ErrNoOccupants
	}
	for _, amount := range []string{m.Total, m.DepositPerOccupant} {
		if _, err := core.ParseMoney(amount); err != nil {
			return fmt.Errorf("amount %q: %w", amount, err)
		}
	}
	for _, s := range m.Shares {
		if s.OccupantID == "" {
			return errors.New("share without occupant id")
		}
		if _, err := core.ParseMoney(s.Amount); err != nil {
			return fmt.Errorf("share of %s: %w", s.OccupantID, err)
		}
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *StatementMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatementMessageFromJSON decodes and validates a message.
func StatementMessageFromJSON(data []byte) (*StatementMessage, error) {
	var msg StatementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statement message: %w", err)
	}
	return &msg, nil
}
