package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Allocation policies. The values double as the persisted split_type.
const (
	PolicyEqual        Policy = "equal"
	PolicyByRoomSize   Policy = "room"
	PolicyByPercentage Policy = "custom"
)

// Charge split methods. They are display metadata only.
const (
	SplitEqual   SplitMethod = "Equal"
	SplitByUsage SplitMethod = "By Usage"
	SplitCustom  SplitMethod = "Custom"
)

type (
	// Policy selects how the monthly total is divided among occupants.
	Policy string

	SplitMethod string

	// Occupant is a party responsible for a share of the monthly cost. Only the
	// attribute used by the active policy is meaningful; the other is zero.
	Occupant struct {
		ID         string
		RoomSize   float64
		Percentage float64
	}

	// Charge is a named monthly amount (a utility line item).
	Charge struct {
		Name        string
		Amount      Money
		SplitMethod SplitMethod
		Note        string
	}

	// Period labels a computation. It carries no computational meaning.
	Period struct {
		Month int
		Year  int
	}
)

// ParsePolicy accepts the persisted values plus a few readable aliases.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equal", "":
		return PolicyEqual, nil
	case "room", "room_size", "room-size", "byroomsize":
		return PolicyByRoomSize, nil
	case "custom", "percentage", "percent", "bypercentage":
		return PolicyByPercentage, nil
	}
	return "", invalid("policy", ErrInvalidPolicy)
}

func (p Policy) Validate() error {
	switch p {
	case PolicyEqual, PolicyByRoomSize, PolicyByPercentage:
		return nil
	}
	return invalid("policy", ErrInvalidPolicy)
}

// Label is the human readable policy name used in reports.
func (p Policy) Label() string {
	switch p {
	case PolicyByRoomSize:
		return "By Room Size"
	case PolicyByPercentage:
		return "Custom Percentage"
	default:
		return "Equal"
	}
}

// ParseSplitMethod is lenient: an empty value means Equal.
func ParseSplitMethod(s string) (SplitMethod, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "", "equal":
		return SplitEqual, nil
	case "by usage", "byusage", "usage":
		return SplitByUsage, nil
	case "custom":
		return SplitCustom, nil
	}
	return "", invalid("split method", ErrInvalidSplit)
}

// Validate checks the occupant against the attributes the policy needs.
func (o Occupant) Validate(p Policy) error {
	if strings.TrimSpace(o.ID) == "" {
		return invalid("occupant name", ErrEmptyName)
	}
	switch p {
	case PolicyByRoomSize:
		if !validRoomSize(o.RoomSize) {
			return invalid("room size", ErrInvalidRoomSize)
		}
	case PolicyByPercentage:
		if !validPercentage(o.Percentage) {
			return invalid("percentage", ErrInvalidPercentage)
		}
	case PolicyEqual:
	default:
		return invalid("policy", ErrInvalidPolicy)
	}
	return nil
}

// validRoomSize rejects zero, negatives, NaN and infinities.
func validRoomSize(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// validPercentage accepts (0, 100]. NaN fails both comparisons.
func validPercentage(v float64) bool {
	return v > 0 && v <= 100
}

// ValidAttributes checks room size and percentage without a policy: each
// must be zero (unset) or valid under its own policy.
func (o Occupant) ValidAttributes() error {
	if o.RoomSize != 0 && !validRoomSize(o.RoomSize) {
		return invalid("room size", ErrInvalidRoomSize)
	}
	if o.Percentage != 0 && !validPercentage(o.Percentage) {
		return invalid("percentage", ErrInvalidPercentage)
	}
	return nil
}

// Normalize trims the id and zeroes the attribute the policy ignores.
func (o Occupant) Normalize(p Policy) Occupant {
	o.ID = strings.TrimSpace(o.ID)
	switch p {
	case PolicyByRoomSize:
		o.Percentage = 0
	case PolicyByPercentage:
		o.RoomSize = 0
	default:
		o.RoomSize, o.Percentage = 0, 0
	}
	return o
}

func (c Charge) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("charge name", ErrEmptyName)
	}
	if err := c.Amount.Validate(); err != nil {
		return invalid("charge amount", err)
	}
	return nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return invalid("month", ErrInvalidPeriod)
	}
	if p.Year < 1 || p.Year > 9999 {
		return invalid("year", ErrInvalidPeriod)
	}
	return nil
}

// MonthName returns the English month name, e.g. "March".
func (p Period) MonthName() string {
	return time.Month(p.Month).String()
}

// String renders the period as "March 2025".
func (p Period) String() string {
	return p.MonthName() + " " + strconv.Itoa(p.Year)
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// ParseMonth accepts a month number (1-12), an English month name or its
// three letter abbreviation.
func ParseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, invalid("month", ErrInvalidPeriod)
		}
		return n, nil
	}
	lower := strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || (len(lower) == 3 && strings.HasPrefix(name, lower)) {
			return int(m), nil
		}
	}
	return 0, invalid("month", ErrInvalidPeriod)
}
