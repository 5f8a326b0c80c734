package consignment

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_SizeAndContains(t *testing.T) {
	r := Range{Start: 100, End: 110}
	assert.Equal(t, int64(11), r.Size())
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(110))
	assert.False(t, r.Contains(99))
	assert.False(t, r.Contains(111))
	assert.Equal(t, int64(0), Range{Start: 5, End: 4}.Size())
}

func TestRange_Overlaps(t *testing.T) {
	base := Range{Start: 1000, End: 1010}
	tests := []struct {
		name  string
		other Range
		want  bool
	}{
		{"identical", Range{1000, 1010}, true},
		{"tail overlap", Range{1005, 1020}, true},
		{"head overlap", Range{990, 1000}, true},
		{"contained", Range{1002, 1003}, true},
		{"containing", Range{900, 2000}, true},
		{"adjacent after", Range{1011, 1020}, false},
		{"adjacent before", Range{990, 999}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

// countIn counts how many of used fall inside a range.
func countIn(used ...int64) UsedCounter {
	return func(r Range) (int64, error) {
		var n int64
		for _, u := range used {
			if r.Contains(u) {
				n++
			}
		}
		return n, nil
	}
}

func TestFirstFree(t *testing.T) {
	r := Range{Start: 2000, End: 2002}
	tests := []struct {
		name   string
		used   []int64
		want   int64
		wantOK bool
	}{
		{"nothing used", nil, 2000, true},
		{"first used", []int64{2000}, 2001, true},
		{"gap before higher numbers", []int64{2001}, 2000, true},
		{"numbers outside ignored", []int64{1990, 2000, 2001}, 2002, true},
		{"exhausted", []int64{2000, 2001, 2002}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok, err := FirstFree(r, countIn(tt.used...))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, n)
		})
	}

	_, ok, err := FirstFree(Range{Start: 3, End: 1}, countIn())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFirstFree_TopOfInt64(t *testing.T) {
	top := Range{Start: math.MaxInt64 - 1, End: math.MaxInt64}

	n, ok, err := FirstFree(top, countIn(math.MaxInt64-1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), n)

	n, ok, err = FirstFree(top, countIn(math.MaxInt64-1, math.MaxInt64))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestFirstFree_LogarithmicCalls(t *testing.T) {
	r := Range{Start: 1_000_000, End: 1_999_999}
	// everything below 1_765_432 is taken
	firstFree := int64(1_765_432)
	calls := 0
	count := func(q Range) (int64, error) {
		calls++
		hi := q.End
		if hi >= firstFree {
			hi = firstFree - 1
		}
		if hi < q.Start {
			return 0, nil
		}
		return hi - q.Start + 1, nil
	}

	n, ok, err := FirstFree(r, count)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, firstFree, n)
	assert.LessOrEqual(t, calls, 22)
}

func TestFirstFree_CountError(t *testing.T) {
	boom := errors.New("count failed")
	_, ok, err := FirstFree(Range{Start: 1, End: 10}, func(Range) (int64, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestUsagePercentage(t *testing.T) {
	assert.Equal(t, int64(0), UsagePercentage(0, 0))
	assert.Equal(t, int64(0), UsagePercentage(5, 0))
	assert.Equal(t, int64(33), UsagePercentage(1, 3))
	assert.Equal(t, int64(67), UsagePercentage(2, 3))
	assert.Equal(t, int64(100), UsagePercentage(11, 11))
}

func TestSuggestAfter(t *testing.T) {
	tests := []struct {
		name                  string
		highest, floor, count int64
		want                  Range
		wantOK                bool
	}{
		{"nothing assigned yet", 0, 871026571, 100, Range{Start: 871026571, End: 871026670}, true},
		{"after highest", 900000000, 871026571, 10, Range{Start: 900000001, End: 900000010}, true},
		{"count at least one", 10, 1, 0, Range{Start: 11, End: 11}, true},
		{"fits exactly at the top", MaxNumber - 10, 1, 10, Range{Start: MaxNumber - 9, End: MaxNumber}, true},
		{"highest at the top", MaxNumber, 1, 1, Range{}, false},
		{"highest at int64 limit", math.MaxInt64, 100, 10, Range{}, false},
		{"count runs past the top", MaxNumber - 5, 1, 10, Range{}, false},
		{"huge count", 1000, 1, math.MaxInt64, Range{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SuggestAfter(tt.highest, tt.floor, tt.count)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
