// Package schedule generates and classifies credit installment plans.
package schedule

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// Installment statuses. Paid is explicit and terminal; the rest are derived
// from the due date relative to "now" and never persisted.
const (
	StatusPending = "pending"
	StatusDueSoon = "due_soon"
	StatusOverdue = "overdue"
	StatusPaid    = "paid"
)

const (
	MinCount = 1
	MaxCount = 24
)

var (
	ErrBadCount     = errors.New("installment count must be between 1 and 24")
	ErrBadFrequency = errors.New("frequency must be weekly, biweekly or monthly")
	ErrBadAmount    = errors.New("total amount must be positive")
)

// Installment is one scheduled partial payment.
type Installment struct {
	Sequence int32
	DueDate  time.Time
	Amount   decimal.Decimal
}

// Generate splits total into count installments starting at firstDue and
// advancing by the frequency unit. Each installment gets the even cent
// split rounded down; the last one absorbs the residual so the amounts sum
// to total exactly.
func Generate(total decimal.Decimal, count int32, frequency string, firstDue time.Time) ([]Installment, error) {
	if count < MinCount || count > MaxCount {
		return nil, ErrBadCount
	}
	if !total.IsPositive() {
		return nil, ErrBadAmount
	}
	switch frequency {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
	default:
		return nil, ErrBadFrequency
	}

	per := total.Div(decimal.NewFromInt(int64(count))).RoundDown(2)
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(count - 1))))

	out := make([]Installment, 0, count)
	for i := int32(0); i < count; i++ {
		amount := per
		if i == count-1 {
			amount = last
		}
		out = append(out, Installment{
			Sequence: i + 1,
			DueDate:  advance(firstDue, frequency, int(i)),
			Amount:   amount,
		})
	}
	return out, nil
}

func advance(first time.Time, frequency string, steps int) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return first.AddDate(0, 0, 7*steps)
	case FrequencyBiweekly:
		return first.AddDate(0, 0, 14*steps)
	default:
		return first.AddDate(0, steps, 0)
	}
}

// Status classifies one installment at a point in time. A paid installment
// stays paid regardless of its due date. dueSoonDays is the lookahead
// window for the due_soon warning.
func Status(dueDate time.Time, paid bool, now time.Time, dueSoonDays int) string {
	if paid {
		return StatusPaid
	}
	if dueDate.Before(now) {
		return StatusOverdue
	}
	if dueSoonDays > 0 && !dueDate.After(now.AddDate(0, 0, dueSoonDays)) {
		return StatusDueSoon
	}
	return StatusPending
}
