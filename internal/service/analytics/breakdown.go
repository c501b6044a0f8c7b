package analytics

import (
	"sort"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// HourlyBreakdown groups opens and clicks by UTC hour of day. Only hours
// with at least one open produce a row; rows are ordered by hour.
func HourlyBreakdown(events []domain.EngagementEvent) []domain.HourlyStat {
	var opens, clicks [24]int
	for i := range events {
		h := events[i].OccurredAt.UTC().Hour()
		switch events[i].Type {
		case domain.EventOpened:
			opens[h]++
		case domain.EventClicked:
			clicks[h]++
		}
	}

	out := []domain.HourlyStat{}
	for h := 0; h < 24; h++ {
		if opens[h] > 0 {
			out = append(out, domain.HourlyStat{Hour: h, Opens: opens[h], Clicks: clicks[h]})
		}
	}
	return out
}

// DeviceBreakdown groups events that carry a device type.
func DeviceBreakdown(events []domain.EngagementEvent) []domain.BreakdownRow {
	return categoryBreakdown(events, func(e *domain.EngagementEvent) string { return e.DeviceType })
}

// LocationBreakdown groups events that carry a location label.
func LocationBreakdown(events []domain.EngagementEvent) []domain.BreakdownRow {
	return categoryBreakdown(events, func(e *domain.EngagementEvent) string { return e.Location })
}

// categoryBreakdown counts events per non-empty key. Rows are ordered by
// count descending, then key, so every key appears exactly once in a stable
// position.
func categoryBreakdown(events []domain.EngagementEvent, key func(*domain.EngagementEvent) string) []domain.BreakdownRow {
	counts := make(map[string]int)
	total := 0
	for i := range events {
		k := key(&events[i])
		if k == "" {
			continue
		}
		counts[k]++
		total++
	}

	out := make([]domain.BreakdownRow, 0, len(counts))
	for k, n := range counts {
		out = append(out, domain.BreakdownRow{Key: k, Count: n, Percentage: domain.Rate(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
