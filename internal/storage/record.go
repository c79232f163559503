package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"rentsplit/internal/core"
	"rentsplit/internal/household"
)

// ErrCorruptRecord is wrapped by every decode failure. Callers fall back to
// household.Default() and surface the error as a warning.
var ErrCorruptRecord = errors.New("corrupt snapshot record")

type (
	tenantRecord struct {
		Name       string  `json:"name"`
		RoomSize   float64 `json:"room_size"`
		Percentage float64 `json:"percentage"`
	}

	utilityRecord struct {
		Amount      core.Money `json:"amount"`
		SplitMethod string     `json:"split_method"`
		Notes       string     `json:"notes"`
	}

	// utilities is a JSON object whose keys keep ledger order.
	utilities []core.Charge

	snapshotRecord struct {
		RentAmount      core.Money     `json:"rent_amount"`
		Utilities       utilities      `json:"utilities"`
		Tenants         []tenantRecord `json:"tenants"`
		SplitType       string         `json:"split_type"`
		SecurityDeposit core.Money     `json:"security_deposit"`
		Maintenance     core.Money     `json:"maintenance"`
	}
)

func (u utilities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range u {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(utilityRecord{
			Amount:      c.Amount,
			SplitMethod: string(c.SplitMethod),
			Notes:       c.Note,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode serializes s as the persisted JSON document, indented with four
// spaces.
func Encode(s household.Snapshot) ([]byte, error) {
	rec := snapshotRecord{
		RentAmount:      s.Rent,
		Utilities:       utilities(s.Charges.All()),
		Tenants:         []tenantRecord{},
		SplitType:       string(s.Policy),
		SecurityDeposit: s.SecurityDeposit,
		Maintenance:     s.Maintenance,
	}
	for _, o := range s.Occupants.All() {
		rec.Tenants = append(rec.Tenants, tenantRecord{
			Name:       o.ID,
			RoomSize:   o.RoomSize,
			Percentage: o.Percentage,
		})
	}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a persisted document. Missing fields take their default
// values. On error the returned snapshot is household.Default().
func Decode(data []byte) (household.Snapshot, error) {
	s, err := decode(data)
	if err != nil {
		return household.Default(), fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return s, nil
}

func decode(data []byte) (household.Snapshot, error) {
	s := household.Default()
	if !gjson.ValidBytes(data) {
		return s, errors.New("invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return s, errors.New("document is not an object")
	}

	var err error
	if s.Rent, err = money(doc.Get("rent_amount")); err != nil {
		return s, fmt.Errorf("rent_amount: %w", err)
	}
	if s.SecurityDeposit, err = money(doc.Get("security_deposit")); err != nil {
		return s, fmt.Errorf("security_deposit: %w", err)
	}
	if s.Maintenance, err = money(doc.Get("maintenance")); err != nil {
		return s, fmt.Errorf("maintenance: %w", err)
	}
	if st := doc.Get("split_type"); st.Exists() {
		if s.Policy, err = core.ParsePolicy(st.String()); err != nil {
			return s, fmt.Errorf("split_type: %w", err)
		}
	}

	// ForEach walks object keys in document order, which is the ledger order.
	doc.Get("utilities").ForEach(func(key, value gjson.Result) bool {
		var amount core.Money
		if amount, err = money(value.Get("amount")); err != nil {
			err = fmt.Errorf("utility %q: %w", key.String(), err)
			return false
		}
		var method core.SplitMethod
		if method, err = core.ParseSplitMethod(value.Get("split_method").String()); err != nil {
			err = fmt.Errorf("utility %q: %w", key.String(), err)
			return false
		}
		err = s.Charges.Add(core.Charge{
			Name:        key.String(),
			Amount:      amount,
			SplitMethod: method,
			Note:        value.Get("notes").String(),
		})
		if err != nil {
			err = fmt.Errorf("utility %q: %w", key.String(), err)
			return false
		}
		return true
	})
	if err != nil {
		return household.Default(), err
	}

	for i, t := range doc.Get("tenants").Array() {
		o := core.Occupant{
			ID:         t.Get("name").String(),
			RoomSize:   t.Get("room_size").Float(),
			Percentage: t.Get("percentage").Float(),
		}
		if err := s.Occupants.Restore(o); err != nil {
			return household.Default(), fmt.Errorf("tenant %d: %w", i, err)
		}
	}
	return s, nil
}

func money(r gjson.Result) (core.Money, error) {
	var m core.Money
	if !r.Exists() {
		return m, nil
	}
	err := m.UnmarshalJSON([]byte(r.Raw))
	return m, err
}
