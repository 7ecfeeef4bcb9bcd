// Package puzzle resolves the numbers and goal for a search: generated from a
// date the way the daily game deals them, or given explicitly.
package puzzle

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

const (
	// Count is how many numbers the daily game deals.
	Count = 5

	multiplier = 16807      // 7^5
	modulus    = 2147483647 // 2^31 - 1
)

var ErrInvalidDate = errors.New("invalid puzzle date")

// Date is a calendar day. Month runs 1 to 12.
type Date struct {
	Year  int
	Month int
	Day   int
}

func Today() Date {
	return FromTime(time.Now())
}

func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ParseDate reads YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return FromTime(t), nil
}

// Fill takes the non-zero parts of d and the rest from fallback.
func (d Date) Fill(fallback Date) Date {
	if d.Year == 0 {
		d.Year = fallback.Year
	}
	if d.Month == 0 {
		d.Month = fallback.Month
	}
	if d.Day == 0 {
		d.Day = fallback.Day
	}
	return d
}

func (d Date) Validate() error {
	t := d.Time()
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || t.Day() != d.Day {
		return fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, d.Year, d.Month, d.Day)
	}
	return nil
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return strftime.Format("%Y-%m-%d", d.Time())
}

// Label is the long human form, e.g. "Thursday 15 October 2026".
func (d Date) Label() string {
	return strftime.Format("%A %d %B %Y", d.Time())
}

// Goal is the day of the month.
func Goal(d Date) float64 {
	return float64(d.Day)
}

// Numbers deals the day's numbers: a Lehmer generator seeded from the date,
// each draw mapped into 1..20 and negated on multiples of three, duplicates
// skipped, sorted ascending.
func Numbers(d Date) []float64 {
	// the game seeds with a zero based month
	seed := int64(d.Day) + 100*int64(d.Year) + 1_000_000*int64(d.Month-1)
	nums := make([]float64, 0, Count)
	for len(nums) < Count {
		seed = seed * multiplier % modulus
		n := float64(seed%20 + 1)
		if seed%3 == 0 {
			n = -n
		}
		if !slices.Contains(nums, n) {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums
}

// ParseNumbers reads numbers separated by spaces or commas.
func ParseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) == 0 {
		return nil, errors.New("no numbers given")
	}
	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("parse number %q: %w", f, err)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// Puzzle is a resolved search input.
type Puzzle struct {
	Date    Date
	Numbers []float64
	Goal    float64
	// Generated is false when numbers or goal were given explicitly.
	Generated bool
}

// Request selects a puzzle. Zero date parts default to Now.
type Request struct {
	Date    Date
	Numbers []float64
	Goal    *float64
	Now     func() time.Time
}

// Resolve builds the puzzle for req. Explicit numbers and goal take priority
// over the ones dealt for the date.
func Resolve(req Request) (Puzzle, error) {
	now := time.Now
	if req.Now != nil {
		now = req.Now
	}
	d := req.Date.Fill(FromTime(now()))
	if err := d.Validate(); err != nil {
		return Puzzle{}, err
	}
	p := Puzzle{Date: d, Numbers: Numbers(d), Goal: Goal(d), Generated: true}
	if len(req.Numbers) > 0 {
		p.Numbers = slices.Clone(req.Numbers)
		p.Generated = false
	}
	if req.Goal != nil {
		p.Goal = *req.Goal
		p.Generated = false
	}
	return p, nil
}
