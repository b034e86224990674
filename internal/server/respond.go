package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"universes/internal/service"
)

// Envelope fields shared by every JSON response:
// {success, message?, errors?, ...data}.

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// ok writes a success envelope. Requests from plain HTML forms are
// redirected back to where they came from instead.
func ok(w http.ResponseWriter, r *http.Request, data map[string]any) {
	if !wantsJSON(r) {
		redirectBack(w, r, "/")
		return
	}
	body := map[string]any{"success": true}
	for k, v := range data {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// fail maps a service error onto the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if verr, isValidation := service.IsValidation(err); isValidation {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"message": "The given data was invalid.",
			"errors":  verr.Fields,
		})
		return
	}
	if errors.Is(err, service.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Not found.")
		return
	}
	s.logger.Error("request failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "Something went wrong.")
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	return !strings.Contains(accept, "text/html")
}

func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	ref := strings.TrimSpace(r.PostFormValue("referer"))
	if ref == "" {
		ref = strings.TrimSpace(r.Header.Get("Referer"))
	}
	if ref != "" {
		http.Redirect(w, r, ref, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}
