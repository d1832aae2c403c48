package schedule

import (
	"errors"
	"strings"
)

// Period labels carried on entries created through the period picker.
const (
	PeriodMorning   = "Morning"
	PeriodAfternoon = "Afternoon"
	PeriodNight     = "Night"
)

// ErrNoTimeSelected is returned when a multi-period add resolves to zero
// creation requests. It is a precondition failure: nothing was submitted.
var ErrNoTimeSelected = errors.New("schedule: no time slot selected")

// PeriodFlags records which slots the user ticked.
type PeriodFlags struct {
	Morning   bool
	Afternoon bool
	Night     bool
	Custom    bool
}

// PeriodTimes carries the time of day per slot. Custom may be empty, in
// which case a ticked custom slot is skipped rather than rejected.
type PeriodTimes struct {
	Morning   string
	Afternoon string
	Night     string
	Custom    string
}

// DefaultPeriodTimes are the picker's pre-filled values.
func DefaultPeriodTimes() PeriodTimes {
	return PeriodTimes{Morning: "08:00", Afternoon: "14:00", Night: "21:00"}
}

// CreateRequest is one pending entry-creation call against the store.
type CreateRequest struct {
	Name   string
	Time   string
	Days   Days
	Period string
}

// ExpandPeriods turns a period selection into the ordered list of
// creation requests. A selected slot with an empty time contributes
// nothing; if no slot contributes, ErrNoTimeSelected is returned before
// any request is issued.
//
// Requests are later submitted one by one; the caller aborts the batch
// on the first store failure, leaving earlier creations committed.
func ExpandPeriods(name string, flags PeriodFlags, times PeriodTimes, days Days) ([]CreateRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	type slot struct {
		on     bool
		at     string
		period string
	}
	slots := []slot{
		{flags.Morning, times.Morning, PeriodMorning},
		{flags.Afternoon, times.Afternoon, PeriodAfternoon},
		{flags.Night, times.Night, PeriodNight},
		{flags.Custom, times.Custom, ""},
	}

	var reqs []CreateRequest
	for _, s := range slots {
		if !s.on || strings.TrimSpace(s.at) == "" {
			continue
		}
		reqs = append(reqs, CreateRequest{Name: name, Time: s.at, Days: days, Period: s.period})
	}
	if len(reqs) == 0 {
		return nil, ErrNoTimeSelected
	}

	// Validate everything up front so a bad slot rejects the whole batch
	// before the first creation request goes out.
	for _, r := range reqs {
		if err := (Entry{Name: r.Name, Time: r.Time, Days: r.Days}).Validate(); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}
