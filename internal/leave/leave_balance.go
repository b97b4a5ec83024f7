package leave

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Entitlements maps a leave type to its yearly allowance in days.
type Entitlements map[LeaveType]decimal.Decimal

// DefaultEntitlements is the organisation-wide table. Unpaid leave carries a
// large finite sentinel so remaining stays a concrete number.
func DefaultEntitlements() Entitlements {
	return Entitlements{
		TypeAnnual:      decimal.NewFromInt(21),
		TypeSick:        decimal.NewFromInt(10),
		TypePersonal:    decimal.NewFromInt(5),
		TypeMaternity:   decimal.NewFromInt(90),
		TypePaternity:   decimal.NewFromInt(14),
		TypeEmergency:   decimal.NewFromInt(3),
		TypeBereavement: decimal.NewFromInt(3),
		TypeStudy:       decimal.NewFromInt(5),
		TypeUnpaid:      decimal.NewFromInt(365),
	}
}

type entitlementsFile struct {
	Entitlements map[string]float64 `yaml:"entitlements"`
}

// LoadEntitlements reads overrides from a YAML file on top of the defaults.
// A missing file yields the defaults.
func LoadEntitlements(path string) (Entitlements, error) {
	out := DefaultEntitlements()
	if path == "" {
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read entitlements: %w", err)
	}

	return parseEntitlements(raw, out)
}

func parseEntitlements(raw []byte, base Entitlements) (Entitlements, error) {
	var file entitlementsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse entitlements: %w", err)
	}

	for k, days := range file.Entitlements {
		t, err := ParseLeaveType(k)
		if err != nil {
			return nil, fmt.Errorf("entitlements: %w", err)
		}
		if days < 0 {
			return nil, fmt.Errorf("entitlements: %s must not be negative", t)
		}
		base[t] = decimal.NewFromFloat(days)
	}
	return base, nil
}

func (e Entitlements) For(t LeaveType) decimal.Decimal {
	if v, ok := e[t]; ok {
		return v
	}
	return decimal.Zero
}

type Balance struct {
	LeaveType LeaveType
	Year      int
	Entitled  decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal
}

// Covers reports whether requested days fit in the remaining balance.
func (b Balance) Covers(requested decimal.Decimal) bool {
	return b.Remaining.GreaterThanOrEqual(requested)
}

// UsageReader sums approved days; implemented by Repository.
type UsageReader interface {
	SumApprovedDays(ctx context.Context, employeeID string, leaveType LeaveType, from, to time.Time) (decimal.Decimal, error)
}

type BalanceCalculator struct {
	entitlements Entitlements
}

func NewBalanceCalculator(entitlements Entitlements) *BalanceCalculator {
	if entitlements == nil {
		entitlements = DefaultEntitlements()
	}
	return &BalanceCalculator{entitlements: entitlements}
}

// Calculate returns entitled, used and remaining days of one type in year.
// Used counts approved requests whose start date falls in the year.
func (c *BalanceCalculator) Calculate(ctx context.Context, r UsageReader, employeeID string, t LeaveType, year int) (Balance, error) {
	from, to := YearBounds(year)

	used, err := r.SumApprovedDays(ctx, employeeID, t, from, to)
	if err != nil {
		return Balance{}, err
	}

	entitled := c.entitlements.For(t)
	remaining := entitled.Sub(used)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return Balance{
		LeaveType: t,
		Year:      year,
		Entitled:  entitled,
		Used:      used,
		Remaining: remaining,
	}, nil
}

// CalculateAll returns balances for every configured type in canonical order.
func (c *BalanceCalculator) CalculateAll(ctx context.Context, r UsageReader, employeeID string, year int) ([]Balance, error) {
	out := make([]Balance, 0, len(c.entitlements))
	for _, t := range leaveTypes {
		if _, ok := c.entitlements[t]; !ok {
			continue
		}
		b, err := c.Calculate(ctx, r, employeeID, t, year)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// YearBounds returns the first and last calendar day of year.
func YearBounds(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
