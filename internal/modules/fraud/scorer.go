package fraud

import (
	"time"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Policy holds the scoring weights and thresholds. Values are configuration,
// not business truths; defaults only have to satisfy the documented gates
// (reject above 80, flag above 50).
type Policy struct {
	HighValueThresholdTiyin int64
	HighValueWeight         int
	NewCustomerComboWeight  int // new customer + high value together
	OffHoursWeight          int
	OffHoursStart           int // hour of day, inclusive
	OffHoursEnd             int // hour of day, exclusive
	MethodWeights           map[string]int
	FlagAbove               int
	RejectAbove             int
}

func DefaultPolicy() Policy {
	return Policy{
		HighValueThresholdTiyin: 10_000_000, // 100 000 UZS
		HighValueWeight:         45,
		NewCustomerComboWeight:  40,
		OffHoursWeight:          10,
		OffHoursStart:           0,
		OffHoursEnd:             6,
		MethodWeights: map[string]int{
			"card":             5,
			"click":            5,
			"oson":             5,
			"bank_transfer":    10,
			"cash_on_delivery": 15,
		},
		FlagAbove:   50,
		RejectAbove: 80,
	}
}

type Input struct {
	AmountTiyin int64
	Method      string
	NewCustomer bool
	At          time.Time
}

type Result struct {
	Score   int
	Level   string
	Reasons []string
}

// Score is a pure function: same input, same output. No I/O, no clock reads
// (the evaluation time comes in with the input).
func Score(p Policy, in Input) Result {
	score := 0
	var reasons []string

	highValue := in.AmountTiyin > p.HighValueThresholdTiyin
	if highValue {
		score += p.HighValueWeight
		reasons = append(reasons, "amount_above_threshold")
	}

	if in.NewCustomer && highValue {
		score += p.NewCustomerComboWeight
		reasons = append(reasons, "new_customer_high_value")
	}

	h := in.At.Hour()
	if h >= p.OffHoursStart && h < p.OffHoursEnd {
		score += p.OffHoursWeight
		reasons = append(reasons, "off_hours")
	}

	if w, ok := p.MethodWeights[in.Method]; ok && w > 0 {
		score += w
		reasons = append(reasons, "method_risk")
	}

	if score > 100 {
		score = 100
	}

	return Result{Score: score, Level: p.Level(score), Reasons: reasons}
}

func (p Policy) Level(score int) string {
	switch {
	case score > p.RejectAbove:
		return RiskHigh
	case score > p.FlagAbove:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Rejected reports whether the score is past the hard-stop threshold.
func (p Policy) Rejected(score int) bool { return score > p.RejectAbove }
