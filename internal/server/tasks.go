package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"universes/internal/display"
	"universes/internal/model"
	"universes/internal/repository"
	"universes/internal/service"
	"universes/internal/status"
)

type membershipJSON struct {
	UniverseItemID uint   `json:"universe_item_id"`
	UniverseID     uint   `json:"universe_id"`
	Name           string `json:"name"`
	IsPrimary      bool   `json:"is_primary"`
	Order          *int   `json:"order"`
}

type taskJSON struct {
	ID              uint             `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	DeadlineAt      *time.Time       `json:"deadline_at"`
	CompletedAt     *time.Time       `json:"completed_at"`
	SkippedAt       *time.Time       `json:"skipped_at"`
	Status          model.TaskStatus `json:"status"`
	DisplayStatus   status.Status    `json:"display_status"`
	RecurringTaskID *uint            `json:"recurring_task_id"`
	RecurringTask   string           `json:"recurring_task_name,omitempty"`
	SkipVisible     bool             `json:"skip_visible"`
	EstimatedTime   *int             `json:"estimated_time"`
	UniverseIDs     []uint           `json:"universe_ids"`
	PrimaryUniverse int              `json:"primary_universe"`
	Universes       []membershipJSON `json:"universes"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// UniverseNames renders the universe list the way the card shows it.
func (t taskJSON) UniverseNames() string {
	names := make([]string, len(t.Universes))
	for i, u := range t.Universes {
		names[i] = u.Name
	}
	return display.Universes(names, t.PrimaryUniverse)
}

func (s *Server) universeNames(ctx context.Context) (map[uint]string, error) {
	list, err := s.universes.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(list))
	for _, u := range list {
		names[u.ID] = u.Name
	}
	return names, nil
}

func (s *Server) taskView(d service.TaskDetail, names map[uint]string) taskJSON {
	t := d.Task
	ids, primary := d.UniverseIDs()
	view := taskJSON{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		DeadlineAt:      t.DeadlineAt,
		CompletedAt:     t.CompletedAt,
		SkippedAt:       t.SkippedAt,
		Status:          t.Status,
		DisplayStatus:   service.DisplayStatus(t, s.now()),
		RecurringTaskID: t.RecurringTaskID,
		SkipVisible:     status.SkipVisible(t.RecurringTaskID != nil, t.CompletedAt != nil, t.SkippedAt != nil),
		EstimatedTime:   t.EstimatedTime,
		UniverseIDs:     ids,
		PrimaryUniverse: primary,
		Universes:       make([]membershipJSON, 0, len(d.Memberships)),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.RecurringTask != nil {
		view.RecurringTask = t.RecurringTask.Name
	}
	for _, m := range d.Memberships {
		view.Universes = append(view.Universes, membershipJSON{
			UniverseItemID: m.ID,
			UniverseID:     m.UniverseID,
			Name:           names[m.UniverseID],
			IsPrimary:      m.Primary(),
			Order:          m.Order,
		})
	}
	return view
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	var universeID *uint
	if raw := r.URL.Query().Get("universe_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid universe id.")
			return
		}
		id := uint(n)
		universeID = &id
	}
	details, err := s.tasks.List(r.Context(), universeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names, err := s.universeNames(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]taskJSON, 0, len(details))
	for _, d := range details {
		views = append(views, s.taskView(d, names))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tasks": views})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	s.respondTask(w, r, id, "")
}

func (s *Server) respondTask(w http.ResponseWriter, r *http.Request, id uint, message string) {
	detail, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names, err := s.universeNames(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data := map[string]any{"task": s.taskView(*detail, names)}
	if message != "" {
		data["message"] = message
	}
	ok(w, r, data)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the form.")
		return
	}
	in := service.TaskCreate{
		Name:            f.str("name"),
		UniverseIDs:     f.uints("universe_ids"),
		PrimaryUniverse: f.integer("primary_universe"),
		Status:          f.str("status"),
	}
	if err := f.err(); err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.tasks.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names, err := s.universeNames(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := s.taskView(*detail, names)
	var card bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&card, "task_card.html", view); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"task": view, "html": card.String()})
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	f, err := readForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the form.")
		return
	}
	in := service.TaskUpdate{
		Name:            f.str("name"),
		Description:     f.str("description"),
		UniverseIDs:     f.uints("universe_ids"),
		PrimaryUniverse: f.integer("primary_universe"),
		Status:          f.optString("status"),
		DeadlineAt:      f.timeField("deadline_at", s.now().Location()),
		RecurringTaskID: f.uintField("recurring_task_id"),
	}
	if f.has("estimated_time") {
		in.EstimatedTime = &service.Estimate{Numeral: f.str("estimated_time"), Unit: f.str("time_unit")}
	}
	if err := f.err(); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.tasks.Update(r.Context(), id, in); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondTask(w, r, id, "Task updated.")
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Task deleted."})
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, func(ctx context.Context, id uint) error {
		_, err := s.tasks.Complete(ctx, id, s.now())
		return err
	}, "Task completed.")
}

func (s *Server) handleTaskSkip(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, func(ctx context.Context, id uint) error {
		_, err := s.tasks.Skip(ctx, id, s.now())
		return err
	}, "Task skipped.")
}

func (s *Server) handleTaskUnskip(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, func(ctx context.Context, id uint) error {
		_, err := s.tasks.Unskip(ctx, id)
		return err
	}, "Task unskipped.")
}

func (s *Server) taskAction(w http.ResponseWriter, r *http.Request, action func(context.Context, uint) error, message string) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	if err := action(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondTask(w, r, id, message)
}

func (s *Server) handleTaskLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	in, err := s.logInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.tasks.Log(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Time logged.", "log": entry})
}

type orderRequest struct {
	UniverseID uint                      `json:"universe_id"`
	Updates    []repository.OrderUpdate `json:"updates"`
}

func (s *Server) handleTaskUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Could not read the request.")
			return
		}
	} else {
		f, err := readForm(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Could not read the form.")
			return
		}
		if id := f.optUint("universe_id"); id != nil {
			req.UniverseID = *id
		}
		if raw := f.str("updates"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Updates); err != nil {
				f.verr.Add("updates", "Must be a list of positions.")
			}
		}
		if err := f.err(); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if err := s.tasks.UpdateOrder(r.Context(), req.UniverseID, req.Updates); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Order updated."})
}

func (s *Server) logInput(r *http.Request) (service.LogInput, error) {
	if isJSON(r) {
		var body struct {
			Minutes *int   `json:"minutes"`
			Notes   string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return service.LogInput{}, &service.ValidationError{Fields: map[string][]string{"minutes": {"Could not read the request."}}}
		}
		return service.LogInput{Minutes: body.Minutes, Notes: body.Notes}, nil
	}
	f, err := readForm(r)
	if err != nil {
		return service.LogInput{}, err
	}
	in := service.LogInput{Minutes: f.optInt("minutes"), Notes: f.str("notes")}
	return in, f.err()
}
