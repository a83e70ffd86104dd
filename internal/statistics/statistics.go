// Package statistics summarizes cards and their review logs.
package statistics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
)

// MasteredIntervalDays is the interval above which a card counts as mastered.
const MasteredIntervalDays = 21

// Summary holds the state of a set of cards at one point in time.
type Summary struct {
	Course        string  `json:"course,omitempty"`
	TotalCards    int     `json:"totalCards"`
	DueNow        int     `json:"dueNow"`
	New           int     `json:"new"`
	Learning      int     `json:"learning"`
	Review        int     `json:"review"`
	Relearning    int     `json:"relearning"`
	Mastered      int     `json:"mastered"`
	ReviewedToday int     `json:"reviewedToday"`
	TotalReviews  int     `json:"totalReviews"`
	Accuracy      float64 `json:"accuracy"` // percentage of passing reviews
	StreakDays    int     `json:"streakDays"`
}

// PeriodStatistics holds review activity for a month
type PeriodStatistics struct {
	Period         string `json:"period"` // "2025-01"
	Reviews        int    `json:"reviews"`
	FirstSuccesses int    `json:"firstSuccesses"` // first passing review of a card
	Lapses         int    `json:"lapses"`         // failed reviews of a card recalled before
	LapsesUnique   int    `json:"lapsesUnique"`
}

// Result holds the overall summary, one summary per course and the
// monthly activity, newest month first.
type Result struct {
	Overall Summary            `json:"overall"`
	Courses []Summary          `json:"courses"`
	Periods []PeriodStatistics `json:"periods"`
}

// Filter restricts the periods to a year or a month; zero means no filter.
type Filter struct {
	Year  int
	Month int
}

type periodData struct {
	reviews        int
	firstSuccesses int
	lapses         int
	lapsesUnique   map[int64]struct{}
}

// Calculate summarizes cards and logs at now. logs must be in the order they
// were recorded.
func Calculate(cards []card.Card, logs []card.ReviewLog, now time.Time, filter Filter) Result {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	courseOf := make(map[int64]string, len(cards))
	for _, c := range cards {
		courseOf[c.ID] = c.Course
	}

	overall := newAccumulator("")
	courses := make(map[string]*accumulator)
	forCourse := func(course string) *accumulator {
		if courses[course] == nil {
			courses[course] = newAccumulator(course)
		}
		return courses[course]
	}

	for _, c := range cards {
		overall.addCard(c, now)
		forCourse(c.Course).addCard(c, now)
	}
	for _, log := range logs {
		course := log.Course
		if known, ok := courseOf[log.CardID]; ok {
			course = known
		}
		overall.addLog(log, today)
		forCourse(course).addLog(log, today)
	}

	result := Result{
		Overall: overall.summary(today),
		Courses: make([]Summary, 0, len(courses)),
		Periods: calculatePeriods(logs, filter),
	}
	for _, acc := range courses {
		result.Courses = append(result.Courses, acc.summary(today))
	}
	sort.Slice(result.Courses, func(i, j int) bool {
		return result.Courses[i].Course < result.Courses[j].Course
	})
	return result
}

type accumulator struct {
	s           Summary
	passed      int
	reviewDates map[string]struct{}
}

func newAccumulator(course string) *accumulator {
	return &accumulator{
		s:           Summary{Course: course},
		reviewDates: make(map[string]struct{}),
	}
}

func (a *accumulator) addCard(c card.Card, now time.Time) {
	a.s.TotalCards++
	if c.IsDue(now) {
		a.s.DueNow++
	}
	switch c.Phase() {
	case card.PhaseNew:
		a.s.New++
	case card.PhaseLearning:
		a.s.Learning++
	case card.PhaseReview:
		a.s.Review++
	case card.PhaseRelearning:
		a.s.Relearning++
	}
	if c.Interval > MasteredIntervalDays {
		a.s.Mastered++
	}
}

func (a *accumulator) addLog(log card.ReviewLog, today time.Time) {
	a.s.TotalReviews++
	if log.Quality >= scheduler.PassingQuality {
		a.passed++
	}
	reviewedAt := log.ReviewedAt.UTC()
	if !reviewedAt.Before(today) {
		a.s.ReviewedToday++
	}
	a.reviewDates[reviewedAt.Format(time.DateOnly)] = struct{}{}
}

func (a *accumulator) summary(today time.Time) Summary {
	s := a.s
	if s.TotalReviews > 0 {
		s.Accuracy = math.Round(float64(a.passed)*1000/float64(s.TotalReviews)) / 10
	}
	s.StreakDays = calculateStreak(a.reviewDates, today)
	return s
}

// calculateStreak counts consecutive days with reviews ending today, or
// yesterday when nothing has been reviewed today yet.
func calculateStreak(reviewDates map[string]struct{}, today time.Time) int {
	day := today
	if _, ok := reviewDates[day.Format(time.DateOnly)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := reviewDates[day.Format(time.DateOnly)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

func calculatePeriods(logs []card.ReviewLog, filter Filter) []PeriodStatistics {
	stats := make(map[string]*periodData)
	recalled := make(map[int64]bool)

	for _, log := range logs {
		if log.ReviewedAt.IsZero() {
			continue
		}
		reviewedAt := log.ReviewedAt.UTC()
		passed := log.Quality >= scheduler.PassingQuality
		firstSuccess := passed && !recalled[log.CardID]
		lapse := !passed && recalled[log.CardID]
		if passed {
			recalled[log.CardID] = true
		}

		if !matchesFilter(reviewedAt.Year(), int(reviewedAt.Month()), filter) {
			continue
		}

		period := fmt.Sprintf("%d-%02d", reviewedAt.Year(), int(reviewedAt.Month()))
		data := ensurePeriodExists(stats, period)
		data.reviews++
		if firstSuccess {
			data.firstSuccesses++
		}
		if lapse {
			data.lapses++
			data.lapsesUnique[log.CardID] = struct{}{}
		}
	}

	periods := make([]PeriodStatistics, 0, len(stats))
	for period, data := range stats {
		periods = append(periods, PeriodStatistics{
			Period:         period,
			Reviews:        data.reviews,
			FirstSuccesses: data.firstSuccesses,
			Lapses:         data.lapses,
			LapsesUnique:   len(data.lapsesUnique),
		})
	}

	// Sort by period descending (newest first)
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Period > periods[j].Period
	})
	return periods
}

func ensurePeriodExists(stats map[string]*periodData, period string) *periodData {
	if stats[period] == nil {
		stats[period] = &periodData{
			lapsesUnique: make(map[int64]struct{}),
		}
	}
	return stats[period]
}

func matchesFilter(logYear, logMonth int, filter Filter) bool {
	if filter.Year == 0 {
		return true
	}
	if logYear != filter.Year {
		return false
	}
	if filter.Month == 0 {
		return true
	}
	return logMonth == filter.Month
}
