package httpapi

import (
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"
)

// handleExportICS renders the active schedule as an iCalendar feed, one
// weekly-recurring VEVENT per entry. Inert entries (empty day set) are
// skipped: they have no trigger set to export.
func (s *Service) handleExportICS(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//medassist//schedule//EN")

	for _, e := range s.repo.Entries() {
		rule := e.RRuleString()
		if rule == "" {
			continue
		}
		start := e.NextOccurrence(now)
		if start.IsZero() {
			continue
		}

		ev := cal.AddEvent(e.ID + "@medassist")
		ev.SetDtStampTime(now)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(5 * time.Minute))
		ev.SetSummary("Take " + e.Name)
		if e.Period != "" {
			ev.SetDescription(e.Period + " dose")
		}
		ev.AddRrule(rule)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="medassist.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}
