package models

// EffortLevel estimates the engineering work needed to apply a recommendation.
type EffortLevel string

const (
	EffortLow    EffortLevel = "low"
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
)

// RiskLevel estimates the blast radius of applying a recommendation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Recommendation is a single quantified cost-optimization suggestion emitted
// by a unit's pipeline. It is a pure value: never mutated after creation.
type Recommendation struct {
	UnitName                string      `json:"unit_name"                 validate:"required"`
	Category                string      `json:"category"                  validate:"required"`
	Description             string      `json:"description,omitempty"`
	EstimatedMonthlySavings float64     `json:"estimated_monthly_savings" validate:"min=0"`
	Effort                  EffortLevel `json:"effort"                    validate:"oneof=low medium high"`
	Risk                    RiskLevel   `json:"risk"                      validate:"oneof=low medium high"`
}
