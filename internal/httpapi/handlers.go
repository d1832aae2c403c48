package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medassist/internal/reminder"
	"medassist/internal/schedule"
	"medassist/internal/store"
	"medassist/pkg/logx"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusForScheduleErr maps domain errors onto HTTP codes.
func statusForScheduleErr(err error) int {
	switch {
	case errors.Is(err, schedule.ErrEmptyName),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrNoTimeSelected):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDisabled):
		return http.StatusServiceUnavailable
	case strings.Contains(err.Error(), "unknown weekday"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.repo.Entries()})
}

// periodsRequest mirrors the period picker: tick a slot, optionally
// override its time, optionally add a custom slot.
type periodsRequest struct {
	Morning    bool   `json:"morning"`
	Afternoon  bool   `json:"afternoon"`
	Night      bool   `json:"night"`
	CustomTime string `json:"custom_time,omitempty"`
}

type createScheduleRequest struct {
	Name    string          `json:"name"`
	Time    string          `json:"time,omitempty"`
	Days    []string        `json:"days,omitempty"`
	Periods *periodsRequest `json:"periods,omitempty"`
}

func (s *Service) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := decodeStrict(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	days := schedule.Days(req.Days)
	if len(days) == 0 {
		days = schedule.EveryDay()
	}

	if req.Periods == nil {
		created, err := s.repo.Create(r.Context(), schedule.CreateRequest{
			Name: req.Name,
			Time: req.Time,
			Days: days,
		})
		if err != nil {
			writeErr(w, statusForScheduleErr(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"entries": []schedule.Entry{created}})
		return
	}

	times := s.periods
	times.Custom = req.Periods.CustomTime
	flags := schedule.PeriodFlags{
		Morning:   req.Periods.Morning,
		Afternoon: req.Periods.Afternoon,
		Night:     req.Periods.Night,
		Custom:    strings.TrimSpace(req.Periods.CustomTime) != "",
	}

	reqs, err := schedule.ExpandPeriods(req.Name, flags, times, days)
	if err != nil {
		writeErr(w, statusForScheduleErr(err), err.Error())
		return
	}

	created, err := s.repo.CreateBatch(r.Context(), reqs)
	if err != nil {
		// Earlier creations stay committed; report both.
		s.log.Warn("schedule batch aborted", logx.Int("created", len(created)), logx.Err(err))
		writeJSON(w, statusForScheduleErr(err), map[string]any{
			"error":   err.Error(),
			"entries": created,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": created})
}

type updateScheduleRequest struct {
	Name string   `json:"name"`
	Time string   `json:"time"`
	Days []string `json:"days"`
}

func (s *Service) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.repo.Get(id); !ok {
		writeErr(w, http.StatusNotFound, "schedule entry not found")
		return
	}

	var req updateScheduleRequest
	if err := decodeStrict(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	e := schedule.Entry{ID: id, Name: req.Name, Time: req.Time, Days: schedule.Days(req.Days)}
	if err := s.repo.Update(r.Context(), e); err != nil {
		writeErr(w, statusForScheduleErr(err), err.Error())
		return
	}
	updated, _ := s.repo.Get(id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Service) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		writeErr(w, statusForScheduleErr(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	ConfirmationID string `json:"confirmation_id"`
	Status         string `json:"status"` // "taken" | "snoozed"
	Minutes        int    `json:"minutes,omitempty"`
}

func (s *Service) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeStrict(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ConfirmationID) == "" {
		writeErr(w, http.StatusBadRequest, "confirmation_id is required")
		return
	}

	var err error
	switch req.Status {
	case store.StatusTaken, "confirmed":
		err = s.rem.Confirm(r.Context(), req.ConfirmationID)
	case store.StatusSnoozed:
		err = s.rem.Snooze(r.Context(), req.ConfirmationID, req.Minutes)
	default:
		writeErr(w, http.StatusBadRequest, "status must be \"taken\" or \"snoozed\"")
		return
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
	case errors.Is(err, reminder.ErrNotPending):
		writeErr(w, http.StatusConflict, "reminder already resolved")
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

type sessionRequest struct {
	Active bool `json:"active"`
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeStrict(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.sess.SetActive(req.Active)
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Snapshot())
}

type pushLinkRequest struct {
	ChatID int64 `json:"chat_id"`
}

func (s *Service) handlePushLink(w http.ResponseWriter, r *http.Request) {
	if s.links == nil {
		writeErr(w, http.StatusServiceUnavailable, "storage disabled; push link cannot be saved")
		return
	}
	var req pushLinkRequest
	if err := decodeStrict(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ChatID == 0 {
		writeErr(w, http.StatusBadRequest, "chat_id is required")
		return
	}
	if err := s.links.SavePushLink(r.Context(), store.PushLink{ChatID: req.ChatID, LinkedAt: time.Now()}); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.SetPushStatus("Push notifications active ✅")
	writeJSON(w, http.StatusOK, map[string]any{"linked": true})
}

func (s *Service) handlePushLinkStatus(w http.ResponseWriter, r *http.Request) {
	if s.links == nil {
		writeJSON(w, http.StatusOK, map[string]any{"linked": false})
		return
	}
	link, ok, err := s.links.GetPushLink(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"linked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"linked": true, "linked_at": link.LinkedAt})
}
