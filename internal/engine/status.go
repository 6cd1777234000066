package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/studypay/duebell/internal/models"
)

const (
	// DefaultDueSoonThresholdDays is used when an agency has no explicit window.
	DefaultDueSoonThresholdDays = 4
	minThresholdDays            = 1
	maxThresholdDays            = 30
)

// CutoffTime is a tenant-local wall-clock time of day.
type CutoffTime struct {
	Hour   int
	Minute int
}

// ParseCutoff parses an "HH:MM" cutoff string.
func ParseCutoff(value string) (CutoffTime, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return CutoffTime{}, fmt.Errorf("cutoff %q is not in HH:MM form", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return CutoffTime{}, fmt.Errorf("cutoff %q has an invalid hour", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return CutoffTime{}, fmt.Errorf("cutoff %q has an invalid minute", value)
	}

	return CutoffTime{Hour: hour, Minute: minute}, nil
}

// ClampThreshold bounds a configured due-soon window to the supported range.
func ClampThreshold(days int) int {
	if days < minThresholdDays {
		return DefaultDueSoonThresholdDays
	}
	if days > maxThresholdDays {
		return maxThresholdDays
	}
	return days
}

// localDate reduces t to a calendar date in loc, normalised to UTC midnight
// so that date arithmetic is a plain hour division.
func localDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// dueDate reduces the stored due date to its calendar day. The column is a
// date; whatever wall time or zone the driver attaches is ignored.
func dueDate(inst models.Installment) time.Time {
	d := inst.DueDate
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntilDue returns the whole calendar days between now (in the tenant's
// zone) and the installment due date. Negative means the due date has passed.
func DaysUntilDue(inst models.Installment, loc *time.Location, now time.Time) int {
	today := localDate(now, loc)
	return int(dueDate(inst).Sub(today).Hours() / 24)
}

// IsDueSoon reports whether a pending installment falls inside the due-soon
// window. The result is derived, never stored: true iff status is pending and
// today <= due date <= today+thresholdDays on the tenant's calendar, both
// boundaries inclusive.
func IsDueSoon(inst models.Installment, thresholdDays int, loc *time.Location, now time.Time) bool {
	if inst.Status != models.StatusPending {
		return false
	}
	if inst.DueDate.IsZero() {
		return false
	}

	days := DaysUntilDue(inst, loc, now)
	return days >= 0 && days <= thresholdDays
}

// ShouldTransitionToOverdue reports whether a pending installment should move
// to overdue: its due date is strictly before today, or it is due today and
// the tenant-local wall clock has passed the cutoff. This is the only
// function permitted to recommend a status mutation.
func ShouldTransitionToOverdue(inst models.Installment, cutoff CutoffTime, loc *time.Location, now time.Time) bool {
	if inst.Status != models.StatusPending {
		return false
	}
	if inst.DueDate.IsZero() {
		return false
	}

	days := DaysUntilDue(inst, loc, now)
	if days < 0 {
		return true
	}
	if days > 0 {
		return false
	}

	local := now.In(loc)
	return local.Hour()*60+local.Minute() > cutoff.Hour*60+cutoff.Minute
}
