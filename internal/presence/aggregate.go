// Package presence holds the time arithmetic and weekday aggregations applied
// to a single person's attendance timeline.
package presence

import "sort"

// DaysInWeek is the number of weekday buckets in every aggregation result.
const DaysInWeek = 7

// WeekdayAbbr names the buckets, Monday first.
var WeekdayAbbr = [DaysInWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Presence is one day's entry and exit.
type Presence struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Timeline maps a calendar day to that day's presence for one person.
type Timeline map[Date]Presence

// Dates returns the timeline's days in ascending order.
func (tl Timeline) Dates() []Date {
	dates := make([]Date, 0, len(tl))
	for d := range tl {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// StartEnd collects entry and exit seconds-since-midnight for one weekday.
type StartEnd struct {
	Start []int `json:"start"`
	End   []int `json:"end"`
}

// MeanSpan is the mean entry and exit for one weekday, in seconds since midnight.
type MeanSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// GroupByWeekday buckets the presence interval of every day by weekday.
// Every bucket is non-nil, so a weekday with no records yields an empty list.
func GroupByWeekday(tl Timeline) [DaysInWeek][]int {
	var out [DaysInWeek][]int
	for i := range out {
		out[i] = []int{}
	}
	for _, d := range tl.Dates() {
		p := tl[d]
		wd := d.Weekday()
		out[wd] = append(out[wd], Interval(p.Start, p.End))
	}
	return out
}

// StartEndPresence buckets entry and exit times by weekday. Days sharing a
// weekday accumulate; nothing is averaged here.
func StartEndPresence(tl Timeline) [DaysInWeek]StartEnd {
	var out [DaysInWeek]StartEnd
	for i := range out {
		out[i] = StartEnd{Start: []int{}, End: []int{}}
	}
	for _, d := range tl.Dates() {
		p := tl[d]
		wd := d.Weekday()
		out[wd].Start = append(out[wd].Start, SecondsSinceMidnight(p.Start))
		out[wd].End = append(out[wd].End, SecondsSinceMidnight(p.End))
	}
	return out
}

// MeanByWeekday reduces each bucket to its mean; empty buckets are 0.
func MeanByWeekday(buckets [DaysInWeek][]int) [DaysInWeek]float64 {
	var out [DaysInWeek]float64
	for i, b := range buckets {
		out[i] = Mean(b)
	}
	return out
}

// TotalByWeekday reduces each bucket to its sum.
func TotalByWeekday(buckets [DaysInWeek][]int) [DaysInWeek]int {
	var out [DaysInWeek]int
	for i, b := range buckets {
		for _, v := range b {
			out[i] += v
		}
	}
	return out
}

// MeanStartEnd reduces start/end buckets to their means.
func MeanStartEnd(buckets [DaysInWeek]StartEnd) [DaysInWeek]MeanSpan {
	var out [DaysInWeek]MeanSpan
	for i, b := range buckets {
		out[i] = MeanSpan{Start: Mean(b.Start), End: Mean(b.End)}
	}
	return out
}
