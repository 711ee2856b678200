package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrStr(s string) *string { return &s }
func ptrInt(i int) *int       { return &i }

func mustClock(t *testing.T, s string) time.Duration {
	t.Helper()
	d, err := ParseShiftTime(s)
	require.NoError(t, err)
	return d
}

func TestParseShiftTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "with seconds", input: "09:00:00", want: 9 * time.Hour},
		{name: "without seconds", input: "17:30", want: 17*time.Hour + 30*time.Minute},
		{name: "midnight", input: "00:00:00", want: 0},
		{name: "end of day", input: "23:59:59", want: 23*time.Hour + 59*time.Minute + 59*time.Second},
		{name: "garbage", input: "not-a-time", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShiftTime(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute(t *testing.T) {
	t.Run("nil shift start is unconstrained", func(t *testing.T) {
		w, err := Compute(nil, ptrInt(15), ptrInt(15))
		require.NoError(t, err)
		assert.True(t, w.Unconstrained)
		assert.True(t, w.Allows(3*time.Hour))
		assert.True(t, w.Allows(23*time.Hour))
		assert.Equal(t, 0, w.MinutesUntilOpen(3*time.Hour))
	})

	t.Run("early and late tolerances applied", func(t *testing.T) {
		w, err := Compute(ptrStr("09:00:00"), ptrInt(15), ptrInt(15))
		require.NoError(t, err)
		assert.Equal(t, 8*time.Hour+45*time.Minute, w.Earliest)
		assert.Equal(t, 9*time.Hour+15*time.Minute, w.Latest)
	})

	t.Run("nil early tolerance opens at midnight", func(t *testing.T) {
		w, err := Compute(ptrStr("09:00:00"), nil, ptrInt(15))
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), w.Earliest)
		assert.Equal(t, 9*time.Hour+15*time.Minute, w.Latest)
	})

	t.Run("nil late tolerance stays open until end of day", func(t *testing.T) {
		w, err := Compute(ptrStr("09:00:00"), ptrInt(15), nil)
		require.NoError(t, err)
		assert.Equal(t, 8*time.Hour+45*time.Minute, w.Earliest)
		assert.Equal(t, 23*time.Hour+59*time.Minute+59*time.Second, w.Latest)
	})

	t.Run("window clamped to the day", func(t *testing.T) {
		w, err := Compute(ptrStr("00:10:00"), ptrInt(30), nil)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), w.Earliest)

		w, err = Compute(ptrStr("23:50:00"), nil, ptrInt(30))
		require.NoError(t, err)
		assert.Equal(t, 23*time.Hour+59*time.Minute+59*time.Second, w.Latest)
	})

	t.Run("invalid shift start", func(t *testing.T) {
		_, err := Compute(ptrStr("25:00:00"), nil, nil)
		require.Error(t, err)
	})
}

func TestWindowEdges(t *testing.T) {
	// 09:00 shift with 15 minute tolerances: open [08:45, 09:15].
	w, err := Compute(ptrStr("09:00:00"), ptrInt(15), ptrInt(15))
	require.NoError(t, err)

	t.Run("exactly at earliest is allowed", func(t *testing.T) {
		tod := mustClock(t, "08:45:00")
		assert.True(t, w.Allows(tod))
		assert.Equal(t, 0, w.MinutesUntilOpen(tod))
	})

	t.Run("one minute early is denied with countdown", func(t *testing.T) {
		tod := mustClock(t, "08:44:00")
		assert.True(t, w.TooEarly(tod))
		assert.Equal(t, 1, w.MinutesUntilOpen(tod))
	})

	t.Run("partial minute rounds up", func(t *testing.T) {
		tod := mustClock(t, "08:44:30")
		assert.True(t, w.TooEarly(tod))
		assert.Equal(t, 1, w.MinutesUntilOpen(tod))
	})

	t.Run("exactly at latest is allowed", func(t *testing.T) {
		assert.True(t, w.Allows(mustClock(t, "09:15:00")))
	})

	t.Run("past latest is denied with no countdown", func(t *testing.T) {
		tod := mustClock(t, "09:16:00")
		assert.True(t, w.TooLate(tod))
		assert.False(t, w.TooEarly(tod))
		assert.Equal(t, 0, w.MinutesUntilOpen(tod))
	})
}

func TestTimeOfDay(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// 14:30 UTC is 09:30 in Chicago during daylight saving time.
	now := time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, 9*time.Hour+30*time.Minute, TimeOfDay(now, chicago))

	// The same instant in UTC reads differently.
	assert.Equal(t, 14*time.Hour+30*time.Minute, TimeOfDay(now, time.UTC))
}

func TestShiftEndOn(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// Clock in at 08:00 Chicago; shift ends 17:00 the same local day.
	clockIn := time.Date(2025, 6, 16, 13, 0, 0, 0, time.UTC)
	end, err := ShiftEndOn(clockIn, "17:00:00", chicago)
	require.NoError(t, err)

	want := time.Date(2025, 6, 16, 17, 0, 0, 0, chicago)
	assert.True(t, end.Equal(want), "got %v want %v", end, want)

	_, err = ShiftEndOn(clockIn, "bogus", chicago)
	require.Error(t, err)
}
