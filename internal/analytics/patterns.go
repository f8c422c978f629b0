package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tunescope/internal/model"
	"tunescope/internal/statsapi"
)

// Patterns buckets listening duration by the requested pattern type.
// "day_and_time" is not serviceable upstream and fails explicitly rather than
// returning misleading partial data.
func (e *Engine) Patterns(ctx context.Context, patternType string, p model.Period) (model.PatternReport, error) {
	switch patternType {
	case "hour_of_day":
		return e.hourOfDayPattern(ctx, p)
	case "day_of_week":
		return e.dayOfWeekPattern(ctx, p)
	case "day", "week", "month":
		return e.granularityPattern(ctx, patternType, p)
	case "day_and_time":
		return model.PatternReport{}, &model.UnsupportedError{
			Message: "the upstream cannot combine day-of-week with hour-of-day; request hour_of_day and day_of_week separately",
		}
	default:
		return model.PatternReport{}, model.Invalid("pattern_type", "must be one of hour_of_day, day_of_week, day, week, month")
	}
}

func (e *Engine) hourOfDayPattern(ctx context.Context, p model.Period) (model.PatternReport, error) {
	slices, err := e.stats.TimePer(ctx, p, statsapi.SplitHour)
	if err != nil {
		return model.PatternReport{}, err
	}

	var hist [24]int64
	for _, slice := range slices {
		if slice.HasHour && slice.Hour >= 0 && slice.Hour < 24 {
			hist[slice.Hour] += slice.DurationMS
		}
	}

	report := model.PatternReport{PatternType: "hour_of_day", Period: p}
	for i, v := range hist {
		report.Buckets = append(report.Buckets, model.PatternBucket{Label: fmt.Sprintf("%02d:00", i), DurationMS: v})
	}
	report.PeakBucket = peakHourLabel(hist)
	return report, nil
}

func (e *Engine) dayOfWeekPattern(ctx context.Context, p model.Period) (model.PatternReport, error) {
	slices, err := e.stats.TimePer(ctx, p, statsapi.SplitDay)
	if err != nil {
		return model.PatternReport{}, err
	}

	var hist [7]int64
	for _, slice := range slices {
		if wd, ok := weekdayOf(slice.Date); ok {
			hist[wd] += slice.DurationMS
		}
	}

	report := model.PatternReport{PatternType: "day_of_week", Period: p}
	for i, v := range hist {
		report.Buckets = append(report.Buckets, model.PatternBucket{Label: time.Weekday(i).String(), DurationMS: v})
	}
	report.PeakBucket = peakDayLabel(hist)
	return report, nil
}

func (e *Engine) granularityPattern(ctx context.Context, granularity string, p model.Period) (model.PatternReport, error) {
	slices, err := e.stats.TimePer(ctx, p, statsapi.TimeSplit(granularity))
	if err != nil {
		return model.PatternReport{}, err
	}

	report := model.PatternReport{PatternType: granularity, Period: p}
	var peak int64
	report.PeakBucket = "Unknown"
	for _, slice := range slices {
		report.Buckets = append(report.Buckets, model.PatternBucket{Label: slice.Date, DurationMS: slice.DurationMS})
		if slice.DurationMS > peak {
			peak = slice.DurationMS
			report.PeakBucket = slice.Date
		}
	}
	sort.SliceStable(report.Buckets, func(i, j int) bool {
		return report.Buckets[i].Label < report.Buckets[j].Label
	})
	return report, nil
}

// Timeline is the per-bucket listening series, joining the duration series
// with the play-count series by bucket label. A bucket missing from the count
// series gets a play count estimated from its duration and is flagged.
func (e *Engine) Timeline(ctx context.Context, p model.Period, granularity string) (model.Timeline, error) {
	switch granularity {
	case "day", "week", "month":
	default:
		return model.Timeline{}, model.Invalid("granularity", "must be one of day, week, month")
	}

	var (
		durations []statsapi.DurationBucket
		counts    []statsapi.CountBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		durations, err = e.stats.TimePer(gctx, p, statsapi.TimeSplit(granularity))
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = e.stats.SongsPer(gctx, p, statsapi.TimeSplit(granularity))
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Timeline{}, err
	}

	countByLabel := make(map[string]int64, len(counts))
	for _, bucket := range counts {
		countByLabel[bucket.Date] = bucket.Count
	}

	timeline := model.Timeline{Period: p, Granularity: granularity}
	for _, slice := range durations {
		point := model.TimelinePoint{Label: slice.Date, DurationMS: slice.DurationMS}
		if plays, ok := countByLabel[slice.Date]; ok {
			point.Plays = plays
		} else {
			point.Plays = model.EstimatedPlaysFromDuration(slice.DurationMS)
			point.Estimated = true
		}
		timeline.Points = append(timeline.Points, point)
	}
	sort.SliceStable(timeline.Points, func(i, j int) bool {
		return timeline.Points[i].Label < timeline.Points[j].Label
	})
	return timeline, nil
}
