package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIn(t *testing.T) {
	cases := []struct {
		now   time.Time
		year  int
		month time.Month
	}{
		// still the last evening of January in New York
		{now: time.Date(2026, time.February, 1, 3, 0, 0, 0, time.UTC), year: 2026, month: time.January},
		{now: time.Date(2026, time.February, 1, 6, 0, 0, 0, time.UTC), year: 2026, month: time.February},
		{now: time.Date(2026, time.January, 1, 4, 59, 0, 0, time.UTC), year: 2025, month: time.December},
		{now: time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC), year: 2026, month: time.July},
	}

	for _, c := range cases {
		local := In(c.now)
		require.Equal(t, c.year, local.Year(), c.now)
		require.Equal(t, c.month, local.Month(), c.now)
		require.True(t, local.Equal(c.now), c.now)
	}
}
