package period

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewYears_SizeAndBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		start := 1900 + rng.Intn(200)
		end := start + rng.Intn(150)

		a, err := NewYears(start, end, 0.0)
		require.NoError(t, err)
		assert.Equal(t, end-start+1, a.Len())
		assert.Equal(t, start, a.StartYear())
		assert.Equal(t, end, a.EndYear())

		assert.NotPanics(t, func() { a.Set(start, 1) })
		assert.Equal(t, 1.0, a.At(start))
		assert.NotPanics(t, func() { a.Set(end, 2) })
		assert.Equal(t, 2.0, a.At(end))
		if start < end {
			assert.Equal(t, 1.0, a.At(start))
		}

		assertRangePanic(t, func() { a.At(start - 1) })
		assertRangePanic(t, func() { a.At(end + 1) })
	}
}

func TestNewYears_SingleYear(t *testing.T) {
	a, err := NewYears(2020, 2020, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	a.Set(2020, 4)
	assert.Equal(t, 4.0, a.At(2020))
	assert.Equal(t, 4.0, a.Last())
	assertRangePanic(t, func() { a.At(2019) })
	assertRangePanic(t, func() { a.At(2021) })
}

func TestNewYears_InvertedRange(t *testing.T) {
	_, err := NewYears(2050, 2005, 0.0)
	require.Error(t, err)
	var sizeErr *InvalidSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 2050, sizeErr.StartYear)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "Test case 1: Typical size", size: 9},
		{name: "Test case 2: Empty", size: 0},
		{name: "Test case 3: Negative size", size: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.size, 7.5)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, a.Len())
			for _, v := range a.Values() {
				assert.Equal(t, 7.5, v)
			}
			assertRangePanic(t, func() { a.At(tt.size) })
			assertRangePanic(t, func() { a.At(-1) })
		})
	}
}

func TestClone_Independent(t *testing.T) {
	orig := MustYears(2005, 2020, 1.0)
	cp := orig.Clone()
	cp.Set(2010, 99)

	assert.Equal(t, 1.0, orig.At(2010))
	assert.Equal(t, 99.0, cp.At(2010))
	assert.False(t, orig.Equal(cp))
}

func TestCopyFrom(t *testing.T) {
	a := MustYears(2005, 2010, 3.0)
	b := MustYears(1990, 1995, 0.0)

	b.CopyFrom(&a)
	assert.True(t, b.Equal(&a))
	assert.Equal(t, 2005, b.StartYear())

	b.Set(2005, 4)
	assert.Equal(t, 3.0, a.At(2005))

	// self-assignment keeps the contents
	a.CopyFrom(&a)
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 3.0, a.At(2010))
}

func TestEqual(t *testing.T) {
	a, _ := New(3, true)
	b, _ := New(3, true)
	c, _ := New(4, true)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	b.Set(1, false)
	assert.False(t, a.Equal(b))
}

func TestFind(t *testing.T) {
	a := MustYears(2005, 2050, 0.0)
	assert.Equal(t, 0, a.Find(2005))
	assert.Equal(t, 45, a.Find(2050))
	assert.Equal(t, a.Len(), a.Find(2004))
	assert.Equal(t, a.Len(), a.Find(2051))

	var empty Array[float64]
	assert.Equal(t, 0, empty.Find(0))
}

func TestAssignAndLast(t *testing.T) {
	a, _ := New(5, 0)
	a.Assign(3, 2)
	assert.Equal(t, []int{2, 2, 2, 0, 0}, a.Values())
	a.Set(4, 9)
	assert.Equal(t, 9, a.Last())
	assertRangePanic(t, func() { a.Assign(6, 1) })

	var empty Array[int]
	assertRangePanic(t, func() { empty.Last() })
}

func TestPtr(t *testing.T) {
	a, _ := New(2, 1.0)
	*a.Ptr(1) += 2.5
	assert.Equal(t, 3.5, a.At(1))
}

func TestAll(t *testing.T) {
	a := MustYears(2000, 2002, 0.0)
	a.Set(2001, 5)
	got := map[int]float64{}
	for year, v := range a.All() {
		got[year] = v
	}
	assert.Equal(t, map[int]float64{2000: 0, 2001: 5, 2002: 0}, got)
}

func TestRangeError_Message(t *testing.T) {
	err := &RangeError{Index: 2051, Lo: 2005, Hi: 2050, Years: true}
	assert.Equal(t, "year 2051 out of range [2005, 2050]", err.Error())
}

func assertRangePanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		_, ok := r.(*RangeError)
		assert.True(t, ok, "expected *RangeError, got %T", r)
	}()
	fn()
}
