// Package recurrence turns recurring-visit settings into concrete visit dates.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Named frequencies accepted for recurring visits. Anything else is parsed as a
// standard five-field cron expression.
const (
	Semanal   = "semanal"
	Quinzenal = "quinzenal"
	Mensal    = "mensal"
)

const visitHour = 8

var ErrInvalidFrequency = errors.New("invalid visit frequency")

var weekdays = map[string]time.Weekday{
	"domingo": time.Sunday,
	"segunda": time.Monday,
	"terca":   time.Tuesday,
	"terça":   time.Tuesday,
	"quarta":  time.Wednesday,
	"quinta":  time.Thursday,
	"sexta":   time.Friday,
	"sabado":  time.Saturday,
	"sábado":  time.Saturday,
}

// Plan is a parsed recurring-visit configuration.
type Plan struct {
	Frequency string
	First     time.Time
	schedule  cron.Schedule
}

// Parse builds a plan from a frequency, the first visit date (YYYY-MM-DD) and
// optional weekday names used by weekly plans.
func Parse(frequency, firstVisit string, days []string) (*Plan, error) {
	first, err := time.Parse(time.DateOnly, firstVisit)
	if err != nil {
		return nil, fmt.Errorf("invalid first visit date %q: %w", firstVisit, err)
	}

	first = first.Add(visitHour * time.Hour)

	schedule, err := scheduleFor(strings.ToLower(strings.TrimSpace(frequency)), first, days)
	if err != nil {
		return nil, err
	}

	return &Plan{Frequency: frequency, First: first, schedule: schedule}, nil
}

// Next returns the first n visits starting at the first visit date.
func (p *Plan) Next(n int) []time.Time {
	if n <= 0 {
		return nil
	}

	visits := make([]time.Time, 0, n)
	visits = append(visits, p.First)

	current := p.First
	for len(visits) < n {
		current = p.schedule.Next(current)
		if current.IsZero() {
			break
		}

		visits = append(visits, current)
	}

	return visits
}

// NextDates is Next formatted as YYYY-MM-DD strings.
func (p *Plan) NextDates(n int) []string {
	visits := p.Next(n)
	dates := make([]string, len(visits))

	for i, visit := range visits {
		dates[i] = visit.Format(time.DateOnly)
	}

	return dates
}

// Validate reports whether frequency is usable, without a start date.
func Validate(frequency string, days []string) error {
	_, err := scheduleFor(strings.ToLower(strings.TrimSpace(frequency)), time.Now(), days)

	return err
}

func scheduleFor(frequency string, first time.Time, days []string) (cron.Schedule, error) {
	switch frequency {
	case "":
		return nil, ErrInvalidFrequency
	case Semanal:
		dow, err := weekdayList(first, days)
		if err != nil {
			return nil, err
		}

		return parseStandard(fmt.Sprintf("0 %d * * %s", visitHour, dow))
	case Quinzenal:
		return cron.Every(14 * 24 * time.Hour), nil
	case Mensal:
		return parseStandard(fmt.Sprintf("0 %d %d * *", visitHour, first.Day()))
	default:
		return parseStandard(frequency)
	}
}

func parseStandard(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrequency, err)
	}

	return schedule, nil
}

func weekdayList(first time.Time, days []string) (string, error) {
	if len(days) == 0 {
		return fmt.Sprintf("%d", first.Weekday()), nil
	}

	parts := make([]string, 0, len(days))

	for _, day := range days {
		weekday, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
		if !ok {
			return "", fmt.Errorf("%w: unknown weekday %q", ErrInvalidFrequency, day)
		}

		parts = append(parts, fmt.Sprintf("%d", weekday))
	}

	return strings.Join(parts, ","), nil
}
