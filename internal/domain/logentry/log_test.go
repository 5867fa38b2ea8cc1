package logentry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/logtide/internal/domain/logentry"
)

func TestLevelFromSeverityNumberBands(t *testing.T) {
	band := func(lo, hi int) []int {
		var out []int
		for n := lo; n <= hi; n++ {
			out = append(out, n)
		}
		return out
	}

	cases := []struct {
		want    logentry.Level
		numbers []int
	}{
		{logentry.LevelDebug, band(1, 8)},
		{logentry.LevelInfo, band(9, 12)},
		{logentry.LevelWarn, band(13, 16)},
		{logentry.LevelError, band(17, 20)},
		{logentry.LevelCritical, band(21, 24)},
		{logentry.LevelInfo, []int{0, -3, 25, 100}},
	}
	for _, tc := range cases {
		for _, n := range tc.numbers {
			assert.Equal(t, tc.want, logentry.LevelFromSeverityNumber(n), "severityNumber %d", n)
		}
	}
}
