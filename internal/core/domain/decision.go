package domain

import "fmt"

type AlarmLevel uint8

const (
	AlarmLevelOK      AlarmLevel = 0
	AlarmLevelWarning AlarmLevel = 1
	AlarmLevelAlarm   AlarmLevel = 2
)

const (
	AlarmLevelOKStr      = "ok"
	AlarmLevelWarningStr = "warning"
	AlarmLevelAlarmStr   = "alarm"
)

func (l AlarmLevel) String() string {
	switch l {
	case AlarmLevelOK:
		return AlarmLevelOKStr
	case AlarmLevelWarning:
		return AlarmLevelWarningStr
	case AlarmLevelAlarm:
		return AlarmLevelAlarmStr
	default:
		return fmt.Sprintf("unknown(%d)", uint8(l))
	}
}

// ImbalanceAssessment is the outcome of classifying the SoC spread, possibly
// escalated by unit cell alarms.
type ImbalanceAssessment struct {
	Spread             float64
	ReportingUnits     int
	AlarmLevel         AlarmLevel
	ChargeCurrentLimit float64
	CellAlarm          bool
}

// Decision is the output of one decision cycle.
type Decision struct {
	Aggregate  AggregateReading
	Assessment ImbalanceAssessment
}

// ImbalanceTier selects AlarmLevel and charge current once the SoC spread
// reaches Threshold. With UseReducedCurrent the limit is the reduced charge
// current, otherwise nominal current times Multiplier.
type ImbalanceTier struct {
	Threshold         float64
	AlarmLevel        AlarmLevel
	Multiplier        float64
	UseReducedCurrent bool
}

// ImbalancePolicy is the static tier table, most severe tier first.
type ImbalancePolicy struct {
	Tiers                []ImbalanceTier
	NominalChargeCurrent float64
	ReducedChargeCurrent float64
}

type ImbalanceThresholds struct {
	Ok      float64
	Warning float64
	Alarm   float64
}

// NewImbalancePolicy builds the three-tier policy. Thresholds must satisfy
// ok < warning < alarm, otherwise a lower tier can shadow a higher one.
func NewImbalancePolicy(thresholds ImbalanceThresholds, okMultiplier, warningMultiplier,
	nominalChargeCurrent, reducedChargeCurrent float64) ImbalancePolicy {
	return ImbalancePolicy{
		Tiers: []ImbalanceTier{
			{Threshold: thresholds.Alarm, AlarmLevel: AlarmLevelAlarm, UseReducedCurrent: true},
			{Threshold: thresholds.Warning, AlarmLevel: AlarmLevelWarning, Multiplier: warningMultiplier},
			{Threshold: thresholds.Ok, AlarmLevel: AlarmLevelOK, Multiplier: okMultiplier},
		},
		NominalChargeCurrent: nominalChargeCurrent,
		ReducedChargeCurrent: reducedChargeCurrent,
	}
}

func (p ImbalancePolicy) TierLimit(tier ImbalanceTier) float64 {
	if tier.UseReducedCurrent {
		return p.ReducedChargeCurrent
	}
	return p.NominalChargeCurrent * tier.Multiplier
}
