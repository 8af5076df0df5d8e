package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/models"
	"go.uber.org/zap"
)

// Timestamps are read by naive truncation: the date is the first 10 characters
// (YYYY-MM-DD) and the hour is characters 11-12 of the raw string. No timezone
// conversion happens, so bucket membership follows the literal string.
const (
	dateLayout  = "2006-01-02"
	dateLen     = 10
	hourStart   = 11
	hourEnd     = 13
	skipShort   = "short_timestamp"
	skipBadDate = "bad_date"
	skipBadHour = "bad_hour"
)

// Buckets is the result of a bucketing pass.
type Buckets struct {
	Counts *OrderedMap[int]
	// Skipped counts actions whose timestamp could not be bucketed.
	Skipped int
	// SkipReasons breaks Skipped down by reason.
	SkipReasons map[string]int
}

func newBuckets() *Buckets {
	return &Buckets{Counts: NewOrderedMap[int](), SkipReasons: make(map[string]int)}
}

func (b *Buckets) skip(reason string) {
	b.Skipped++
	b.SkipReasons[reason]++
}

// Bucketer groups actions by calendar date and by time-of-day band.
type Bucketer struct {
	bands  []config.TimeBand
	logger *zap.Logger
}

// NewBucketer creates a bucketer for the given bands, in presentation order.
func NewBucketer(bands []config.TimeBand, logger *zap.Logger) *Bucketer {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := make([]config.TimeBand, len(bands))
	copy(b, bands)
	return &Bucketer{bands: b, logger: logger}
}

// ByDay counts actions per date prefix of the view-mode timestamp.
// Only dates with at least one action appear.
func (b *Bucketer) ByDay(actions []models.Action, mode models.ViewMode) *Buckets {
	out := newBuckets()
	for i := range actions {
		ts := actions[i].Timestamp(mode)
		if len(ts) < dateLen {
			b.logSkip(&actions[i], mode, ts, "timestamp too short for a date")
			out.skip(skipShort)
			continue
		}
		key := ts[:dateLen]
		if _, err := time.Parse(dateLayout, key); err != nil {
			b.logSkip(&actions[i], mode, ts, "timestamp has no valid date prefix")
			out.skip(skipBadDate)
			continue
		}
		out.Counts.Add(key, 1)
	}
	return out
}

// ByTimeOfDay counts actions per configured band. Every band is present,
// even with a zero count. Actions whose hour is unparsable or outside every
// band are left out and logged.
func (b *Bucketer) ByTimeOfDay(actions []models.Action, mode models.ViewMode) *Buckets {
	out := newBuckets()
	for _, band := range b.bands {
		out.Counts.Set(band.Label, 0)
	}

	for i := range actions {
		ts := actions[i].Timestamp(mode)
		hour, ok := hourOf(ts)
		if !ok {
			b.logSkip(&actions[i], mode, ts, "hour of day is undefined")
			out.skip(skipBadHour)
			continue
		}
		label, ok := b.bandFor(hour)
		if !ok {
			b.logSkip(&actions[i], mode, ts, "hour of day is outside every band")
			out.skip(skipBadHour)
			continue
		}
		out.Counts.Add(label, 1)
	}
	return out
}

func (b *Bucketer) bandFor(hour int) (string, bool) {
	for _, band := range b.bands {
		if band.Contains(hour) {
			return band.Label, true
		}
	}
	return "", false
}

func (b *Bucketer) logSkip(a *models.Action, mode models.ViewMode, raw, msg string) {
	b.logger.Debug(msg,
		zap.String("action_id", a.ID),
		zap.String("field", models.TimestampField(mode)),
		zap.String("value", raw),
	)
}

// hourOf extracts the two-character hour at positions 11-12.
func hourOf(ts string) (int, bool) {
	if len(ts) < hourEnd {
		return 0, false
	}
	h, err := strconv.Atoi(ts[hourStart:hourEnd])
	if err != nil {
		return 0, false
	}
	return h, true
}

// FormatByDay orders day buckets by date and renders each date as D-M-YYYY.
func FormatByDay(counts *OrderedMap[int]) []models.DayCount {
	type entry struct {
		day   time.Time
		count int
	}
	entries := make([]entry, 0, counts.Len())
	counts.Each(func(key string, n int) {
		day, err := time.Parse(dateLayout, key)
		if err != nil {
			return
		}
		entries = append(entries, entry{day: day, count: n})
	})

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].day.Before(entries[j].day) })

	out := make([]models.DayCount, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.DayCount{
			Date:  fmt.Sprintf("%d-%d-%d", e.day.Day(), int(e.day.Month()), e.day.Year()),
			Count: e.count,
		})
	}
	return out
}

// FormatByTimeOfDay emits every band in declaration order.
func FormatByTimeOfDay(counts *OrderedMap[int]) []models.TimeOfDayCount {
	out := make([]models.TimeOfDayCount, 0, counts.Len())
	counts.Each(func(label string, n int) {
		out = append(out, models.TimeOfDayCount{TimeOfDay: label, Count: n})
	})
	return out
}

// YAxisMax rounds the largest count up to the next multiple of 10, or of 100
// once it exceeds 100. It returns false for an empty mapping.
func YAxisMax(counts *OrderedMap[int]) (int, bool) {
	peak, ok := counts.Max()
	if !ok {
		return 0, false
	}
	step := 10
	if peak > 100 {
		step = 100
	}
	return ceilTo(peak, step), true
}

func ceilTo(n, step int) int {
	if n <= 0 {
		return 0
	}
	return (n + step - 1) / step * step
}
