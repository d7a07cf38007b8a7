package history

import (
	"strconv"
	"time"

	"ChatSync/internal/session"
)

const (
	GroupToday      = "Today"
	GroupLast7Days  = "Last 7 Days"
	GroupLast30Days = "Last 30 Days"

	// DefaultYearWindow is the number of calendar-year buckets, counting the current year
	DefaultYearWindow = 4
)

// GroupSessionsByDate buckets sessions by recency relative to now
func (s *Sync) GroupSessionsByDate(sessions []session.SessionSummary) []session.SessionGroup {
	return GroupByDate(sessions, s.now(), s.yearWindow)
}

// GroupByDate places each session in the first matching bucket: Today, Last 7
// Days, Last 30 Days, then its calendar year if that year is among the last
// yearWindow years. Other sessions are dropped. Empty buckets are omitted and
// sessions keep their input order within a bucket.
func GroupByDate(sessions []session.SessionSummary, now time.Time, yearWindow int) []session.SessionGroup {
	loc := now.Location()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)
	oldestYear := now.Year() - yearWindow + 1

	order := []string{GroupToday, GroupLast7Days, GroupLast30Days}
	for y := now.Year(); y >= oldestYear; y-- {
		order = append(order, strconv.Itoa(y))
	}

	buckets := make(map[string][]session.SessionSummary, len(order))
	for _, sess := range sessions {
		created := sess.CreatedAt.In(loc)

		var name string
		switch {
		case !created.Before(startOfToday):
			name = GroupToday
		case !created.Before(weekAgo):
			name = GroupLast7Days
		case !created.Before(monthAgo):
			name = GroupLast30Days
		case created.Year() >= oldestYear && created.Year() <= now.Year():
			name = strconv.Itoa(created.Year())
		default:
			continue
		}
		buckets[name] = append(buckets[name], sess)
	}

	groups := make([]session.SessionGroup, 0, len(buckets))
	for _, name := range order {
		if len(buckets[name]) == 0 {
			continue
		}
		groups = append(groups, session.SessionGroup{Name: name, Sessions: buckets[name]})
	}
	return groups
}
