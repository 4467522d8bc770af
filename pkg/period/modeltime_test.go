package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeltime(t *testing.T) {
	mt := Modeltime{StartYear: 2005, Timestep: 5, Periods: 10}
	require.NoError(t, mt.Validate())

	assert.Equal(t, 10, mt.MaxPeriod())
	assert.Equal(t, 2050, mt.EndYear())
	assert.Equal(t, 2020, mt.Year(3))

	p, ok := mt.Period(2020)
	assert.True(t, ok)
	assert.Equal(t, 3, p)

	_, ok = mt.Period(2021)
	assert.False(t, ok, "year between periods")
	_, ok = mt.Period(2055)
	assert.False(t, ok, "year after the last period")
	_, ok = mt.Period(2000)
	assert.False(t, ok, "year before the first period")

	assert.Equal(t, []int{2005, 2010, 2015, 2020, 2025, 2030, 2035, 2040, 2045, 2050}, mt.Years())
}

func TestModeltime_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mt      Modeltime
		wantErr bool
	}{
		{name: "Test case 1: Valid", mt: Modeltime{StartYear: 1990, Timestep: 15, Periods: 1}},
		{name: "Test case 2: No periods", mt: Modeltime{StartYear: 1990, Timestep: 15}, wantErr: true},
		{name: "Test case 3: Zero timestep", mt: Modeltime{StartYear: 1990, Periods: 3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mt.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPeriods(t *testing.T) {
	mt := Modeltime{StartYear: 2005, Timestep: 5, Periods: 4}
	a, err := NewPeriods(mt, false)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Len())
	assert.False(t, a.IsYearKeyed())

	_, err = NewPeriods(Modeltime{}, 0.0)
	assert.Error(t, err)
}
