package service

import (
	"testing"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecisionEngineEvaluate(t *testing.T) {

	require := require.New(t)

	engine := NewDecisionEngine(testPolicy(5, 10, 15), zap.NewNop())

	readings := socReadings(80, 68, 79)
	readings[2].HighCellAlarm = true
	d := engine.Evaluate(readings)

	require.NotNil(d.Aggregate.StateOfCharge)
	require.InDelta(68, *d.Aggregate.StateOfCharge, 1e-9)
	require.InDelta(12, d.Assessment.Spread, 1e-9)
	require.Equal(domain.AlarmLevelAlarm, d.Assessment.AlarmLevel)
	require.InDelta(REDUCED_CURRENT, d.Assessment.ChargeCurrentLimit, 1e-9)
	require.True(d.Assessment.CellAlarm)
}

func TestDecisionEngineNoData(t *testing.T) {

	assert := assert.New(t)

	engine := NewDecisionEngine(testPolicy(5, 10, 15), zap.NewNop())

	d := engine.Evaluate(nil)
	assert.Nil(d.Aggregate.Voltage)
	assert.Nil(d.Aggregate.Current)
	assert.Equal(domain.AlarmLevelOK, d.Assessment.AlarmLevel)
	assert.InDelta(NOMINAL_CURRENT, d.Assessment.ChargeCurrentLimit, 1e-9)
}
