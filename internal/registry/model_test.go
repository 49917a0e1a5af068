package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return testNow.AddDate(0, 0, offset)
}

func TestClassState(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  State
	}{
		{"starts tomorrow", day(1), day(10), StateFuture},
		{"started yesterday, ends tomorrow", day(-1), day(1), StateActive},
		{"starts and ends today", day(0), day(0), StateActive},
		{"starts today", day(0), day(5), StateActive},
		{"ends today", day(-5), day(0), StateActive},
		{"ended yesterday", day(-10), day(-1), StateEnded},
		{"far future", day(100), day(130), StateFuture},
		{"long over", day(-300), day(-270), StateEnded},
		{"start late today still active", testNow.Add(11 * time.Hour), day(3), StateActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Class{StartDate: tt.start, EndDate: tt.end}
			assert.Equal(t, tt.want, ClassState(c, testNow))
		})
	}
}

func TestClassStateExactlyOne(t *testing.T) {
	// Every class falls in exactly one temporal partition.
	for startOff := -4; startOff <= 4; startOff++ {
		for length := 0; length <= 4; length++ {
			c := Class{StartDate: day(startOff), EndDate: day(startOff + length)}
			state := ClassState(c, testNow)
			matches := 0
			for _, s := range []State{StateFuture, StateActive, StateEnded} {
				if state == s {
					matches++
				}
			}
			require.Equal(t, 1, matches, "start %d length %d", startOff, length)
		}
	}
}

func TestEligible(t *testing.T) {
	assert.True(t, Eligible(Class{StartDate: day(1), EndDate: day(5)}, testNow))
	assert.True(t, Eligible(Class{StartDate: day(-1), EndDate: day(0)}, testNow))
	assert.False(t, Eligible(Class{StartDate: day(-5), EndDate: day(-1)}, testNow))
}

func TestParseDOB(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"15/06/2000", false},
		{"01/01/1970", false},
		{"29/02/2000", false}, // leap day
		{"29/02/2001", true},  // no leap day that year
		{"31/02/2001", true},
		{"5/6/2000", true}, // not zero padded
		{"15-06-2000", true},
		{"2000/06/15", true},
		{"15/06/200", true}, // nine characters
		{"aa/bb/cccc", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDOB(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, FormatDOB(got))
		})
	}
}

func TestDOBRoundTrip(t *testing.T) {
	dates := []time.Time{
		time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1996, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		parsed, err := ParseDOB(FormatDOB(d))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(d))
	}
}

func TestSplitTrainers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"John Doe, Jane Smith", []string{"John Doe", "Jane Smith"}},
		{"  solo  ", []string{"solo"}},
		{"a,,b, ,c", []string{"a", "b", "c"}},
		{"", []string{}},
		{" , ", []string{}},
		{"c, b, a", []string{"c", "b", "a"}}, // order preserved
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitTrainers(tt.in), "input %q", tt.in)
	}
}
