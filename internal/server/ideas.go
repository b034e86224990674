package server

import (
	"net/http"

	"universes/internal/model"
	"universes/internal/service"
)

func (s *Server) handleIdeaCreate(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the form.")
		return
	}
	idea, err := s.ideas.CreateIdea(r.Context(), f.str("name"), f.str("description"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"idea": idea})
}

func (s *Server) handleIdeaPoolCreate(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the form.")
		return
	}
	pool, err := s.ideas.CreatePool(r.Context(), f.str("name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"idea_pool": pool})
}

func (s *Server) handleIdeaPools(w http.ResponseWriter, r *http.Request) {
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
	poolIDs := f.uints("pool_ids")
	primary := f.integer("primary_pool")
	if err := f.err(); err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.ideas.AssignPools(r.Context(), id, poolIDs, primary)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Idea pools updated.", "pools": rows})
}

func (s *Server) handleIdeaLog(w http.ResponseWriter, r *http.Request) {
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
	entry, err := s.ideas.Log(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Time logged.", "log": entry})
}

func (s *Server) handleStandaloneLog(w http.ResponseWriter, r *http.Request) {
	in, err := s.logInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.logs.Record(r.Context(), model.Standalone(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"message": "Time logged.", "log": entry})
}

func (s *Server) handleRecurringList(w http.ResponseWriter, r *http.Request) {
	list, err := s.recurring.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recurring_tasks": list})
}

func (s *Server) handleRecurringCreate(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read the form.")
		return
	}
	in := service.RecurringTaskInput{
		Name:                   f.str("name"),
		FrequencyUnit:          f.str("frequency_unit"),
		FrequencyInterval:      f.integer("frequency_interval"),
		EstimatedTime:          f.optInt("estimated_time"),
		Description:            f.str("description"),
		DefaultDurationMinutes: f.optInt("default_duration_minutes"),
	}
	if err := f.err(); err != nil {
		s.fail(w, r, err)
		return
	}
	rt, err := s.recurring.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"recurring_task": rt})
}
