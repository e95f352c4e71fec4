package service

import (
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/port"

	"go.uber.org/zap"
)

type DefaultDecisionEngine struct {
	Policy domain.ImbalancePolicy
	Logger *zap.Logger
}

func NewDecisionEngine(policy domain.ImbalancePolicy, logger *zap.Logger) *DefaultDecisionEngine {
	return &DefaultDecisionEngine{
		Policy: policy,
		Logger: logger.With(zap.String("component", "decision_engine")),
	}
}

// Evaluate runs one decision cycle over a set of unit readings.
func (e *DefaultDecisionEngine) Evaluate(readings []domain.UnitReading) domain.Decision {

	for _, r := range readings {
		if r.AnyCellAlarm() {
			e.Logger.Warn("unit reports cell alarm",
				zap.Uint("unit", r.UnitId),
				zap.Bool("imbalance", r.CellImbalanceAlarm),
				zap.Bool("high_cell_voltage", r.HighCellAlarm),
				zap.Bool("low_cell_voltage", r.LowCellAlarm))
		}
	}

	aggregate := Aggregate(readings)
	assessment := Classify(readings, e.Policy)
	assessment = Escalate(assessment, readings, e.Policy)

	if assessment.ReportingUnits == 0 {
		e.Logger.Warn("no unit reports state of charge, assuming balanced", zap.Int("units", len(readings)))
	} else {
		e.Logger.Info("state of charge",
			zap.Float64s("soc", presentSoCs(readings)),
			zap.Float64("spread", assessment.Spread))
	}
	if assessment.ChargeCurrentLimit < e.Policy.NominalChargeCurrent {
		e.Logger.Warn("charge current limited",
			zap.Stringer("level", assessment.AlarmLevel),
			zap.Float64("limit", assessment.ChargeCurrentLimit),
			zap.Bool("cell_alarm", assessment.CellAlarm))
	}

	return domain.Decision{
		Aggregate:  aggregate,
		Assessment: assessment,
	}
}

// ensure interface compliance
var _ port.DecisionEngine = (*DefaultDecisionEngine)(nil)
