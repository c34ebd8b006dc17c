package orchestrator

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/costray/costray/pkg/breaker"
	"github.com/costray/costray/pkg/retry"
)

// Config controls one orchestrator instance. Validated once at construction;
// immutable afterwards.
type Config struct {
	MaxConcurrentBatches int           `validate:"required,min=1"`
	BatchSize            int           `validate:"required,min=1"`
	UnitTimeout          time.Duration `validate:"required,min=1s"`

	// DeadlineMargin is how close to the run context's deadline the
	// orchestrator stops starting new units. In-flight units finish their
	// current attempt; the rest stay unstarted for a later resume.
	DeadlineMargin time.Duration `validate:"min=0"`

	PriorityCategories []string

	Breaker breaker.Settings
	Retry   retry.Policy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentBatches: 5,
		BatchSize:            10,
		UnitTimeout:          5 * time.Minute,
		DeadlineMargin:       2 * time.Minute,
		Breaker:              breaker.DefaultSettings(),
		Retry:                retry.DefaultPolicy(),
	}
}

// Validate checks the configuration, including the nested breaker settings
// and retry policy.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}

	return nil
}
