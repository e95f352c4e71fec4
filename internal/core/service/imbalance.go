package service

import (
	"math"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
)

// Classify maps the SoC spread between units to an alarm level and a charge
// current limit. Tiers are evaluated from most to least severe and the
// first tier whose threshold is reached wins.
func Classify(readings []domain.UnitReading, policy domain.ImbalancePolicy) domain.ImbalanceAssessment {

	socs := presentSoCs(readings)
	assessment := domain.ImbalanceAssessment{
		ReportingUnits:     len(socs),
		AlarmLevel:         domain.AlarmLevelOK,
		ChargeCurrentLimit: policy.NominalChargeCurrent,
	}

	if len(socs) < 2 {
		// spread is undefined, balanced by default
		return assessment
	}

	minSoC, maxSoC := socs[0], socs[0]
	for _, soc := range socs[1:] {
		minSoC = math.Min(minSoC, soc)
		maxSoC = math.Max(maxSoC, soc)
	}
	assessment.Spread = maxSoC - minSoC

	for _, tier := range policy.Tiers {
		if assessment.Spread >= tier.Threshold {
			assessment.AlarmLevel = tier.AlarmLevel
			assessment.ChargeCurrentLimit = policy.TierLimit(tier)
			break
		}
	}
	return assessment
}

// Escalate forces the alarm tier when any unit reports an internal cell
// alarm. It never lowers the level nor raises the current limit.
func Escalate(assessment domain.ImbalanceAssessment, readings []domain.UnitReading, policy domain.ImbalancePolicy) domain.ImbalanceAssessment {
	for _, r := range readings {
		if r.AnyCellAlarm() {
			assessment.CellAlarm = true
			break
		}
	}
	if !assessment.CellAlarm {
		return assessment
	}
	if assessment.AlarmLevel < domain.AlarmLevelAlarm {
		assessment.AlarmLevel = domain.AlarmLevelAlarm
	}
	assessment.ChargeCurrentLimit = math.Min(assessment.ChargeCurrentLimit, policy.ReducedChargeCurrent)
	return assessment
}

func presentSoCs(readings []domain.UnitReading) []float64 {
	socs := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.StateOfCharge != nil {
			socs = append(socs, *r.StateOfCharge)
		}
	}
	return socs
}
