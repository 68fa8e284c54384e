/**
 * @description
 * Billing period arithmetic. A period is one calendar month, keyed "YYYY-MM".
 */
package domain

import (
	"fmt"
	"time"
)

// Period identifies one calendar billing month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the billing period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" key.
func ParsePeriod(key string) (Period, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period key %q: %w", key, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Key renders the period as "YYYY-MM".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Index is the absolute month number (year*12 + month-1). Two periods are
// comparable by subtracting indices; a positive difference means strictly
// earlier months.
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

// Previous returns the immediately preceding period, wrapping January back to
// December of the prior year.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// IsZero reports whether p is the zero value.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}
