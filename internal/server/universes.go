package server

import (
	"net/http"

	"universes/internal/display"
	"universes/internal/model"
	"universes/internal/service"
)

type universeJSON struct {
	model.Universe
	DisplayStatus string `json:"display_status"`
}

func universeView(u model.Universe) universeJSON {
	return universeJSON{Universe: u, DisplayStatus: display.Enum(string(u.Status))}
}

func (s *Server) handleUniverseList(w http.ResponseWriter, r *http.Request) {
	list, err := s.universes.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]universeJSON, 0, len(list))
	for _, u := range list {
		views = append(views, universeView(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "universes": views})
}

func (s *Server) handleUniverseGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	u, err := s.universes.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"universe": universeView(*u)})
}

func universeInput(f *form) service.UniverseInput {
	return service.UniverseInput{
		Name:        f.str("name"),
		ParentID:    f.optUint("parent_id"),
		Status:      f.str("status"),
		WeeklyOrder: f.intField("weekly_order"),
	}
}

func (s *Server) handleUniverseCreate(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the form.")
		return
	}
	in := universeInput(f)
	if err := f.err(); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.universes.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"universe": universeView(*u)})
}

func (s *Server) handleUniverseUpdate(w http.ResponseWriter, r *http.Request) {
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
	in := universeInput(f)
	if err := f.err(); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.universes.Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Universe updated.", "universe": universeView(*u)})
}

func (s *Server) handleUniverseDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	if err := s.universes.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Universe deleted."})
}

func (s *Server) handleUniverseLog(w http.ResponseWriter, r *http.Request) {
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
	entry, err := s.universes.Log(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Time logged.", "log": entry})
}

type weeklyOrderRequest struct {
	Orders []struct {
		UniverseID  uint `json:"universe_id"`
		WeeklyOrder *int `json:"weekly_order"`
	} `json:"orders"`
}

func (s *Server) handleUniverseWeeklyOrder(w http.ResponseWriter, r *http.Request) {
	var req weeklyOrderRequest
	if !isJSON(r) {
		writeMessage(w, http.StatusUnsupportedMediaType, "Send the weekly order as JSON.")
		return
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the request.")
		return
	}
	orders := make(map[uint]*int, len(req.Orders))
	for _, o := range req.Orders {
		orders[o.UniverseID] = o.WeeklyOrder
	}
	if err := s.universes.UpdateWeeklyOrder(r.Context(), orders); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Weekly order updated."})
}
