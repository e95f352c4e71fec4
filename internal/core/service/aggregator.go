package service

import (
	"math"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
)

// Aggregate reduces per unit readings into the virtual battery reading.
// Voltage and temperature are averaged over present values, current is
// summed with absent values counted as zero and the state of charge is the
// minimum of present values. Current stays absent when no unit reports it.
func Aggregate(readings []domain.UnitReading) domain.AggregateReading {

	var agg domain.AggregateReading
	if len(readings) == 0 {
		return agg
	}

	var voltageSum, temperatureSum, currentSum float64
	var voltageCount, temperatureCount, currentCount int
	minSoC := math.Inf(1)
	for _, r := range readings {
		if r.Voltage != nil {
			voltageSum += *r.Voltage
			voltageCount++
		}
		if r.Temperature != nil {
			temperatureSum += *r.Temperature
			temperatureCount++
		}
		if r.Current != nil {
			currentSum += *r.Current
			currentCount++
		}
		if r.StateOfCharge != nil {
			minSoC = math.Min(minSoC, *r.StateOfCharge)
		}
	}

	if voltageCount > 0 {
		agg.Voltage = domain.Float(voltageSum / float64(voltageCount))
	}
	if temperatureCount > 0 {
		agg.Temperature = domain.Float(temperatureSum / float64(temperatureCount))
	}
	if !math.IsInf(minSoC, 1) {
		agg.StateOfCharge = domain.Float(minSoC)
	}
	if currentCount > 0 {
		agg.Current = domain.Float(currentSum)
	}
	if agg.Voltage != nil && agg.Current != nil {
		agg.Power = domain.Float(*agg.Voltage * *agg.Current)
	}
	return agg
}
