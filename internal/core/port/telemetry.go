package port

import (
	"github.com/berfenger/bmsaggregator/internal/core/domain"
)

// UnitReader fetches one telemetry snapshot of a single BMU.
// A returned error marks the whole unit as unreadable for the cycle,
// individual unsupported fields are reported as nil values instead.
type UnitReader interface {
	UnitId() uint
	Open() error
	Close() error
	Read() (domain.UnitReading, error)
}

type DecisionEngine interface {
	Evaluate(readings []domain.UnitReading) domain.Decision
}
