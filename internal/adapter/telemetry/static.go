package telemetry

import (
	"sync"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"
)

// StaticUnitReader returns a fixed reading, or Err when set. Used by tests
// and dry runs.
type StaticUnitReader struct {
	mu      sync.Mutex
	reading domain.UnitReading
	err     error
	reads   int
}

func NewStaticUnitReader(reading domain.UnitReading) *StaticUnitReader {
	return &StaticUnitReader{reading: reading}
}

func (r *StaticUnitReader) UnitId() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reading.UnitId
}

func (r *StaticUnitReader) Open() error {
	return nil
}

func (r *StaticUnitReader) Close() error {
	return nil
}

func (r *StaticUnitReader) Set(reading domain.UnitReading, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reading = reading
	r.err = err
}

func (r *StaticUnitReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *StaticUnitReader) Read() (domain.UnitReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return domain.UnreadableUnit(r.reading.UnitId), r.err
	}
	return r.reading, nil
}

// ensure interface compliance
var _ port.UnitReader = (*StaticUnitReader)(nil)
