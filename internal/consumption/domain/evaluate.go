package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reading is a raw monthly meter reading for a room.
type Reading struct {
	ResidenceID    snowflake.ID `json:"residence_id"`
	RoomNumber     string       `json:"room_number"`
	BillingMonth   int          `json:"billing_month"`
	BillingYear    int          `json:"billing_year"`
	ConsumptionKwh float64      `json:"consumption_kwh"`
}

// ContractInfo is the part of a contract a reading is evaluated against.
type ContractInfo struct {
	ContractID      snowflake.ID
	StudentID       snowflake.ID
	StudentName     string
	StudentEmail    string
	MonthlyKwhLimit float64
}

type Evaluation struct {
	BillingPeriodKey     string
	ConsumptionKwh       float64
	ContractMonthlyLimit *float64
	ExceedsLimit         bool
	ExcessKwh            *float64
}

// Evaluate computes the derived fields of a reading. A nil info means no
// contract owns the room and no limit applies.
func Evaluate(reading Reading, info *ContractInfo) (Evaluation, error) {
	if reading.BillingMonth < 1 || reading.BillingMonth > 12 {
		return Evaluation{}, ErrInvalidBillingMonth
	}
	if reading.BillingYear < 1 || reading.BillingYear > 9999 {
		return Evaluation{}, ErrInvalidBillingYear
	}
	if !validKwh(reading.ConsumptionKwh) {
		return Evaluation{}, ErrInvalidConsumption
	}

	eval := Evaluation{
		BillingPeriodKey: PeriodKey(reading.BillingYear, reading.BillingMonth),
		ConsumptionKwh:   Round2(reading.ConsumptionKwh),
	}
	if info == nil {
		return eval, nil
	}
	if !validKwh(info.MonthlyKwhLimit) {
		return Evaluation{}, ErrInvalidLimit
	}

	// compared at 0.01 kWh, the resolution that is stored
	limit := Round2(info.MonthlyKwhLimit)
	eval.ContractMonthlyLimit = &limit
	if eval.ConsumptionKwh > limit {
		excess := Round2(eval.ConsumptionKwh - limit)
		eval.ExceedsLimit = true
		eval.ExcessKwh = &excess
	}
	return eval, nil
}

// PeriodKey formats a billing period as "YYYY-MM".
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParsePeriodKey validates a "YYYY-MM" key and returns its parts.
func ParsePeriodKey(key string) (year, month int, err error) {
	t, err := time.Parse("2006-01", key)
	if err != nil || t.Year() < 1 {
		return 0, 0, ErrInvalidBillingPeriod
	}
	return t.Year(), int(t.Month()), nil
}

// Round2 rounds v to 0.01 kWh.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validKwh(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
