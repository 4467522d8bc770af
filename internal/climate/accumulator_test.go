package climate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/market-equilibrium/internal/emissions"
)

func curve(gas, region string, values map[int]float64) *emissions.Curve {
	c := emissions.NewCurve(gas, map[string]string{emissions.LabelRegion: region})
	for year, v := range values {
		c.Set(year, v)
	}
	return c
}

func TestAccumulator_Run(t *testing.T) {
	ctx := context.Background()
	a := NewAccumulator(AccumulatorConfig{
		Timestep:      5,
		Airborne:      map[string]float64{"CO2": 0.5},
		Preindustrial: map[string]float64{"CO2": 280},
	})
	require.NoError(t, a.SetEmissions(curve("CO2", "USA", map[int]float64{2005: 1, 2010: 2})))
	require.NoError(t, a.SetEmissions(curve("CO2", "China", map[int]float64{2005: 3, 2010: 2})))
	require.NoError(t, a.SetEmissions(curve("CH4", "USA", map[int]float64{2005: 0.1})))

	assert.False(t, a.HasRun())
	assert.Equal(t, 0.0, a.Cumulative("CO2", 2010))
	require.NoError(t, a.Run(ctx))
	assert.True(t, a.HasRun())

	assert.Equal(t, []string{"CH4", "CO2"}, a.Gases())
	assert.InDelta(t, 20.0, a.Cumulative("CO2", 2005), 1e-12)
	assert.InDelta(t, 40.0, a.Cumulative("CO2", 2010), 1e-12)
	assert.InDelta(t, 0.5, a.Cumulative("CH4", 2010), 1e-12)

	c, ok := a.Concentration("CO2", 2010)
	assert.True(t, ok)
	assert.InDelta(t, 300.0, c, 1e-12)

	c, ok = a.Concentration("CH4", 2005)
	assert.True(t, ok)
	assert.InDelta(t, DefaultAirborneFraction*0.5, c, 1e-12)

	_, ok = a.Concentration("CO2", 2000)
	assert.False(t, ok)
	_, ok = a.Concentration("N2O", 2010)
	assert.False(t, ok)
}

func TestAccumulator_ReplaceCurve(t *testing.T) {
	ctx := context.Background()
	a := NewAccumulator(AccumulatorConfig{})
	require.NoError(t, a.SetEmissions(curve("CO2", "USA", map[int]float64{2005: 1})))
	require.NoError(t, a.Run(ctx))
	require.NoError(t, a.SetEmissions(curve("CO2", "USA", map[int]float64{2005: 4})))
	assert.False(t, a.HasRun(), "new emissions invalidate the last run")

	require.NoError(t, a.Run(ctx))
	assert.InDelta(t, 4.0, a.Cumulative("CO2", 2005), 1e-12)
}

func TestAccumulator_Errors(t *testing.T) {
	a := NewAccumulator(AccumulatorConfig{})
	assert.ErrorIs(t, a.SetEmissions(nil), ErrNilCurve)
	assert.Error(t, a.SetEmissions(emissions.NewCurve("", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Run(ctx), context.Canceled)
}
