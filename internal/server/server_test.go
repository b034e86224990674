package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"universes/internal/repository"
	"universes/internal/service"
	"universes/internal/status"
)

const testToken = "test-token"

var testNow = time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	taskRepo := repository.NewTaskRepository(db)
	universeRepo := repository.NewUniverseRepository(db)
	recurringRepo := repository.NewRecurringTaskRepository(db)
	logs := service.NewLogService(repository.NewLogRepository(db))

	srv, err := New(Params{
		Logger:    zap.NewNop(),
		CSRFToken: testToken,
		Tasks:     service.NewTaskService(taskRepo, universeRepo, recurringRepo, repository.NewMembershipRepository(db), logs),
		Universes: service.NewUniverseService(universeRepo, logs),
		Ideas:     service.NewIdeaService(repository.NewIdeaRepository(db), logs),
		Recurring: service.NewRecurringTaskService(recurringRepo),
		Logs:      logs,
		Clock:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv.Handler()
}

func multipartRequest(t *testing.T, method, target string, fields url.Values) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vals := range fields {
		for _, v := range vals {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	mw.Close()
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRF-TOKEN", testToken)
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRF-TOKEN", testToken)
	return req
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	HTML    string              `json:"html"`
	Task    *taskJSON           `json:"task"`
	Tasks   []taskJSON          `json:"tasks"`
}

func do(t *testing.T, h http.Handler, req *http.Request, wantStatus int) envelope {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", req.Method, req.URL.Path, rec.Code, wantStatus, rec.Body.String())
	}
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return env
}

func createUniverse(t *testing.T, h http.Handler, name string) uint {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, http.MethodPost, "/universes", url.Values{"name": {name}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("create universe: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Universe universeJSON `json:"universe"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Universe.DisplayStatus != "not started" {
		t.Fatalf("display_status = %q", body.Universe.DisplayStatus)
	}
	return body.Universe.ID
}

func TestHealthAndToken(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))
	if !strings.Contains(rec.Body.String(), testToken) {
		t.Fatalf("token response = %s", rec.Body.String())
	}
}

func TestCSRFMismatch(t *testing.T) {
	h := newTestServer(t)
	req := multipartRequest(t, http.MethodPost, "/tasks", url.Values{"name": {"x"}})
	req.Header.Set("X-CSRF-TOKEN", "stale")
	env := do(t, h, req, statusSessionExpired)
	if env.Success || env.Message == "" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	// the form field is accepted as well
	req = multipartRequest(t, http.MethodPost, "/tasks", url.Values{"name": {"x"}, "_token": {testToken}})
	req.Header.Del("X-CSRF-TOKEN")
	do(t, h, req, http.StatusOK)
}

func TestCreateTaskReturnsCard(t *testing.T) {
	h := newTestServer(t)
	home := createUniverse(t, h, "Home")

	env := do(t, h, multipartRequest(t, http.MethodPost, "/tasks", url.Values{
		"universe_ids[]":   {fmt.Sprint(home)},
		"primary_universe": {"0"},
		"status":           {"open"},
	}), http.StatusOK)
	if !env.Success || env.Task == nil {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Task.Name != "new task" || env.Task.DisplayStatus != "open" {
		t.Fatalf("task = %+v", env.Task)
	}
	for _, want := range []string{fmt.Sprintf(`data-task-id="%d"`, env.Task.ID), "no deadline", "★ Home", "non-recurring", "Not set"} {
		if !strings.Contains(env.HTML, want) {
			t.Fatalf("card missing %q:\n%s", want, env.HTML)
		}
	}
}

func TestUpdateTaskThroughMethodOverride(t *testing.T) {
	h := newTestServer(t)
	home := createUniverse(t, h, "Home")
	work := createUniverse(t, h, "Work")
	created := do(t, h, multipartRequest(t, http.MethodPost, "/tasks", url.Values{"universe_ids[]": {fmt.Sprint(home)}}), http.StatusOK)
	id := created.Task.ID
	path := fmt.Sprintf("/tasks/%d", id)

	tests := []struct {
		name     string
		deadline string
		want     string
	}{
		{"today is never late", "2026-04-15T17:00", "open"},
		{"yesterday is late", "2026-04-14T23:59", "late"},
		{"cleared", "", "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, h, multipartRequest(t, http.MethodPost, path, url.Values{
				"_method":          {"PUT"},
				"name":             {"pay rent"},
				"description":      {"bank"},
				"universe_ids[]":   {fmt.Sprint(home), fmt.Sprint(work)},
				"primary_universe": {"1"},
				"deadline_at":      {tt.deadline},
				"estimated_time":   {"1.5"},
				"time_unit":        {"hours"},
			}), http.StatusOK)
			if env.Task.DisplayStatus != status.Status(tt.want) {
				t.Fatalf("display_status = %s, want %s", env.Task.DisplayStatus, tt.want)
			}
			if env.Task.EstimatedTime == nil || *env.Task.EstimatedTime != 90 {
				t.Fatalf("estimated_time = %v", env.Task.EstimatedTime)
			}
			if env.Task.UniverseIDs[env.Task.PrimaryUniverse] != work {
				t.Fatalf("primary = %+v", env.Task.Universes)
			}
		})
	}
}

func TestUpdateTaskValidation(t *testing.T) {
	h := newTestServer(t)
	created := do(t, h, multipartRequest(t, http.MethodPost, "/tasks", url.Values{}), http.StatusOK)

	env := do(t, h, multipartRequest(t, http.MethodPost, fmt.Sprintf("/tasks/%d", created.Task.ID), url.Values{
		"_method": {"PUT"},
		"name":    {""},
	}), http.StatusUnprocessableEntity)
	if env.Success || len(env.Errors["name"]) == 0 || len(env.Errors["universe_ids"]) == 0 {
		t.Fatalf("errors = %+v", env.Errors)
	}

	do(t, h, multipartRequest(t, http.MethodPost, "/tasks/999", url.Values{"_method": {"PUT"}, "name": {"x"}}), http.StatusNotFound)
}

func TestTaskActions(t *testing.T) {
	h := newTestServer(t)
	created := do(t, h, multipartRequest(t, http.MethodPost, "/tasks", url.Values{}), http.StatusOK)
	base := fmt.Sprintf("/tasks/%d", created.Task.ID)

	env := do(t, h, multipartRequest(t, http.MethodPost, base+"/skip", nil), http.StatusOK)
	if env.Task.DisplayStatus != "skipped" {
		t.Fatalf("after skip: %s", env.Task.DisplayStatus)
	}
	env = do(t, h, multipartRequest(t, http.MethodPost, base+"/unskip", nil), http.StatusOK)
	if env.Task.DisplayStatus != "open" {
		t.Fatalf("after unskip: %s", env.Task.DisplayStatus)
	}
	env = do(t, h, multipartRequest(t, http.MethodPost, base+"/complete", nil), http.StatusOK)
	if env.Task.DisplayStatus != "completed" {
		t.Fatalf("after complete: %s", env.Task.DisplayStatus)
	}
	do(t, h, jsonRequest(t, http.MethodPost, base+"/log", map[string]any{"minutes": 30}), http.StatusOK)
	do(t, h, jsonRequest(t, http.MethodPost, base+"/log", map[string]any{}), http.StatusUnprocessableEntity)

	do(t, h, multipartRequest(t, http.MethodDelete, base, nil), http.StatusOK)
	do(t, h, multipartRequest(t, http.MethodDelete, base, nil), http.StatusNotFound)
}

func TestUpdateOrder(t *testing.T) {
	h := newTestServer(t)
	home := createUniverse(t, h, "Home")
	one := do(t, h, multipartRequest(t, http.MethodPost, "/tasks", url.Values{"name": {"one"}, "universe_ids[]": {fmt.Sprint(home)}}), http.StatusOK)
	two := do(t, h, multipartRequest(t, http.MethodPost, "/tasks", url.Values{"name": {"two"}, "universe_ids[]": {fmt.Sprint(home)}}), http.StatusOK)

	do(t, h, jsonRequest(t, http.MethodPost, "/tasks/update-order", map[string]any{
		"universe_id": home,
		"updates": []map[string]any{
			{"universe_item_id": one.Task.Universes[0].UniverseItemID, "order": 2},
			{"universe_item_id": two.Task.Universes[0].UniverseItemID, "order": 1},
		},
	}), http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/tasks?universe_id=%d", home), nil)
	list := do(t, h, req, http.StatusOK)
	if len(list.Tasks) != 2 || list.Tasks[0].Name != "two" {
		t.Fatalf("tasks = %+v", list.Tasks)
	}
}

func TestHTMLFormRedirectsBack(t *testing.T) {
	h := newTestServer(t)
	req := multipartRequest(t, http.MethodPost, "/tasks", url.Values{"referer": {"/universes/1"}})
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/universes/1" {
		t.Fatalf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestUniverseRoutes(t *testing.T) {
	h := newTestServer(t)
	parent := createUniverse(t, h, "Parent")
	path := fmt.Sprintf("/universes/%d", parent)

	env := do(t, h, multipartRequest(t, http.MethodPost, path, url.Values{
		"_method":   {"PUT"},
		"name":      {"Parent"},
		"parent_id": {fmt.Sprint(parent)},
	}), http.StatusUnprocessableEntity)
	if len(env.Errors["parent_id"]) == 0 {
		t.Fatalf("errors = %+v", env.Errors)
	}

	do(t, h, jsonRequest(t, http.MethodPost, "/universes/update-weekly-order", map[string]any{
		"orders": []map[string]any{{"universe_id": parent, "weekly_order": 1}},
	}), http.StatusOK)
	do(t, h, multipartRequest(t, http.MethodPost, path+"/log", url.Values{"notes": {"planning"}}), http.StatusOK)
	do(t, h, multipartRequest(t, http.MethodPost, "/logs", url.Values{"minutes": {"15"}}), http.StatusOK)
	do(t, h, multipartRequest(t, http.MethodDelete, path, nil), http.StatusOK)
}
