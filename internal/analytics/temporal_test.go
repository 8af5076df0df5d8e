package analytics

import (
	"math/rand"
	"testing"

	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestBucketer() (*Bucketer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewBucketer(config.DefaultTimeBands(), zap.New(core)), logs
}

func TestByDayCountsPerDatePrefix(t *testing.T) {
	b, _ := newTestBucketer()
	actions := []models.Action{
		performAction("1", "create", "2020-12-31T23:59:59.999Z", "u1"),
		performAction("2", "create", "2020-12-31T01:00:00.000Z", "u1"),
		performAction("3", "update", "2021-01-02T08:30:00.000Z", "u2"),
	}

	got := b.ByDay(actions, models.ViewPerform)

	require.Equal(t, 0, got.Skipped)
	require.Equal(t, []string{"2020-12-31", "2021-01-02"}, got.Counts.Keys())
	n, _ := got.Counts.Get("2020-12-31")
	require.Equal(t, 2, n)
}

func TestByDayUsesPublishedInComposeMode(t *testing.T) {
	b, _ := newTestBucketer()
	actions := []models.Action{
		composeAction("1", "create", "2021-05-04T10:00:00Z", "u1"),
		composeAction("2", "create", "2021-05-04T11:00:00Z", "u1"),
	}

	got := b.ByDay(actions, models.ViewCompose)

	require.Equal(t, []string{"2021-05-04"}, got.Counts.Keys())
}

func TestByDayDoesNotShiftTimezones(t *testing.T) {
	b, _ := newTestBucketer()
	actions := []models.Action{
		performAction("1", "create", "2021-05-04T23:30:00-05:00", "u1"),
	}

	got := FormatByDay(b.ByDay(actions, models.ViewPerform).Counts)

	require.Equal(t, []models.DayCount{{Date: "4-5-2021", Count: 1}}, got)
}

func TestByDaySkipsMalformedTimestamps(t *testing.T) {
	b, logs := newTestBucketer()
	actions := []models.Action{
		performAction("1", "create", "2021", "u1"),
		performAction("2", "create", "not-a-date-at-all", "u1"),
		performAction("3", "create", "2021-02-03T00:00:00Z", "u1"),
	}

	got := b.ByDay(actions, models.ViewPerform)

	require.Equal(t, 2, got.Skipped)
	require.Equal(t, 1, got.SkipReasons[skipShort])
	require.Equal(t, 1, got.SkipReasons[skipBadDate])
	require.Equal(t, []string{"2021-02-03"}, got.Counts.Keys())
	require.Equal(t, 2, logs.Len())
}

func TestFormatByDaySortsAscending(t *testing.T) {
	counts := countsOf("2021-01-02", 4, "2020-12-31", 2, "2020-02-10", 1)

	got := FormatByDay(counts)

	require.Equal(t, []models.DayCount{
		{Date: "10-2-2020", Count: 1},
		{Date: "31-12-2020", Count: 2},
		{Date: "2-1-2021", Count: 4},
	}, got)
}

func TestByDayIsOrderIndependent(t *testing.T) {
	b, _ := newTestBucketer()
	actions := []models.Action{
		performAction("1", "a", "2021-01-03T01:00:00Z", "u"),
		performAction("2", "a", "2021-01-01T01:00:00Z", "u"),
		performAction("3", "a", "2021-01-02T01:00:00Z", "u"),
		performAction("4", "a", "2021-01-01T05:00:00Z", "u"),
		performAction("5", "a", "2020-11-30T05:00:00Z", "u"),
	}
	want := FormatByDay(b.ByDay(actions, models.ViewPerform).Counts)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]models.Action, len(actions))
		copy(shuffled, actions)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := FormatByDay(b.ByDay(shuffled, models.ViewPerform).Counts)
		require.Equal(t, want, got)
	}
}

func TestByTimeOfDayBands(t *testing.T) {
	b, _ := newTestBucketer()
	hours := []string{"00", "03", "04", "11", "12", "19", "23"}
	actions := make([]models.Action, 0, len(hours))
	for i, h := range hours {
		actions = append(actions, performAction(string(rune('a'+i)), "v", "2021-01-01T"+h+":00:00Z", "u"))
	}

	got := FormatByTimeOfDay(b.ByTimeOfDay(actions, models.ViewPerform).Counts)

	require.Equal(t, []models.TimeOfDayCount{
		{TimeOfDay: "late night", Count: 2},
		{TimeOfDay: "early morning", Count: 1},
		{TimeOfDay: "morning", Count: 1},
		{TimeOfDay: "afternoon", Count: 1},
		{TimeOfDay: "evening", Count: 1},
		{TimeOfDay: "night", Count: 1},
	}, got)
}

func TestByTimeOfDayEmptyBatchHasAllBands(t *testing.T) {
	b, _ := newTestBucketer()

	got := FormatByTimeOfDay(b.ByTimeOfDay(nil, models.ViewPerform).Counts)

	require.Len(t, got, 6)
	for _, c := range got {
		assert.Zero(t, c.Count, c.TimeOfDay)
	}
}

func TestByTimeOfDaySkipsAndLogsBadHours(t *testing.T) {
	b, logs := newTestBucketer()
	actions := []models.Action{
		performAction("ok", "v", "2021-01-01T09:00:00Z", "u"),
		performAction("letters", "v", "2021-01-01Txx:00:00Z", "u"),
		performAction("range", "v", "2021-01-01T25:00:00Z", "u"),
		performAction("short", "v", "2021-01-01", "u"),
	}

	got := b.ByTimeOfDay(actions, models.ViewPerform)

	require.Equal(t, 3, got.Skipped)
	total := 0
	got.Counts.Each(func(_ string, n int) { total += n })
	require.Equal(t, 1, total)

	entries := logs.FilterField(zap.String("action_id", "letters")).All()
	require.Len(t, entries, 1)
	require.Equal(t, "hour of day is undefined", entries[0].Message)
	require.Equal(t, 1, logs.FilterMessage("hour of day is outside every band").Len())
}

func TestByTimeOfDaySumMatchesParsableHours(t *testing.T) {
	b, _ := newTestBucketer()
	r := rand.New(rand.NewSource(7))
	var actions []models.Action
	parsable := 0
	for i := 0; i < 200; i++ {
		h := r.Intn(30)
		ts := "2021-06-01T" + twoDigits(h) + ":15:00Z"
		if i%17 == 0 {
			ts = "garbage"
		} else if h < 24 {
			parsable++
		}
		actions = append(actions, performAction("a", "v", ts, "u"))
	}

	got := b.ByTimeOfDay(actions, models.ViewPerform)

	total := 0
	got.Counts.Each(func(_ string, n int) { total += n })
	require.Equal(t, parsable, total)
	require.Equal(t, len(actions)-parsable, got.Skipped)
}

func TestByTimeOfDayCustomBands(t *testing.T) {
	b := NewBucketer([]config.TimeBand{{Label: "am", From: 0, To: 11}, {Label: "pm", From: 12, To: 23}}, nil)
	actions := []models.Action{
		performAction("1", "v", "2021-01-01T01:00:00Z", "u"),
		performAction("2", "v", "2021-01-01T13:00:00Z", "u"),
		performAction("3", "v", "2021-01-01T14:00:00Z", "u"),
	}

	got := FormatByTimeOfDay(b.ByTimeOfDay(actions, models.ViewPerform).Counts)

	require.Equal(t, []models.TimeOfDayCount{{TimeOfDay: "am", Count: 1}, {TimeOfDay: "pm", Count: 2}}, got)
}

func TestYAxisMax(t *testing.T) {
	tests := []struct {
		name   string
		counts *OrderedMap[int]
		want   int
		ok     bool
	}{
		{"empty", countsOf(), 0, false},
		{"rounds to ten", countsOf("a", 45), 50, true},
		{"exact ten", countsOf("a", 10), 10, true},
		{"hundred stays", countsOf("a", 100), 100, true},
		{"above hundred rounds to hundred", countsOf("a", 102), 200, true},
		{"uses max", countsOf("a", 3, "b", 71, "c", 12), 80, true},
		{"all zero", countsOf("a", 0, "b", 0), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := YAxisMax(tt.counts)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
