package domain

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

// BatchPeriod is the half of the day a batch window belongs to.
type BatchPeriod string

const (
	PeriodAM BatchPeriod = "AM"
	PeriodPM BatchPeriod = "PM"
)

const (
	pmCutoffHour   = 15
	nextDayCutHour = 22
	amReleaseHour  = 10
	pmReleaseHour  = 17
	batchDateFmt   = "20060102"
)

// BatchLocation is the business time zone batch windows are evaluated in.
var BatchLocation = mustLoadLocation("America/Chicago")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// BatchWindow identifies one settlement window, e.g. 20240105PM.
type BatchWindow struct {
	Date   time.Time // local midnight in BatchLocation
	Period BatchPeriod
}

// ComputeBatchWindow maps an instant onto the window a disbursement created then is released in.
// Before 15:00 local it is the same day's AM window, from 15:00 until 22:00 the PM window,
// and from 22:00 the next day's AM window.
func ComputeBatchWindow(t time.Time) BatchWindow {
	local := t.In(BatchLocation)
	day := localMidnight(local)
	switch h := local.Hour(); {
	case h < pmCutoffHour:
		return BatchWindow{Date: day, Period: PeriodAM}
	case h < nextDayCutHour:
		return BatchWindow{Date: day, Period: PeriodPM}
	default:
		return BatchWindow{Date: day.AddDate(0, 0, 1), Period: PeriodAM}
	}
}

// BatchWindowFor computes the window for now shifted by a number of local calendar days.
func BatchWindowFor(now time.Time, daysOffset int) BatchWindow {
	return ComputeBatchWindow(now.In(BatchLocation).AddDate(0, 0, daysOffset))
}

// ParseBatchNumber turns a YYYYMMDDAM / YYYYMMDDPM value back into a window.
func ParseBatchNumber(batchNumber string) (BatchWindow, error) {
	if len(batchNumber) != len(batchDateFmt)+2 {
		return BatchWindow{}, apperrors.NewValidationError("invalid batch number %q", batchNumber)
	}
	date, err := time.ParseInLocation(batchDateFmt, batchNumber[:8], BatchLocation)
	if err != nil {
		return BatchWindow{}, apperrors.NewValidationError("invalid batch number %q: %v", batchNumber, err)
	}
	period := BatchPeriod(batchNumber[8:])
	if period != PeriodAM && period != PeriodPM {
		return BatchWindow{}, apperrors.NewValidationError("invalid batch period in %q", batchNumber)
	}
	return BatchWindow{Date: date, Period: period}, nil
}

func (w BatchWindow) BatchNumber() string {
	return w.Date.Format(batchDateFmt) + string(w.Period)
}

// ScheduledDateTime is the instant the window's batch is released.
func (w BatchWindow) ScheduledDateTime() time.Time {
	hour := amReleaseHour
	if w.Period == PeriodPM {
		hour = pmReleaseHour
	}
	y, m, d := w.Date.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, BatchLocation)
}

// Next returns the window that follows this one.
func (w BatchWindow) Next() BatchWindow {
	if w.Period == PeriodAM {
		return BatchWindow{Date: w.Date, Period: PeriodPM}
	}
	return BatchWindow{Date: w.Date.AddDate(0, 0, 1), Period: PeriodAM}
}

func (w BatchWindow) String() string {
	return w.BatchNumber()
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
