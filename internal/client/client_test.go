package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestSendClassifiesResponses(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind Kind
		wantMsg  string
	}{
		{
			name: "redirect means session",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/login", http.StatusFound)
			},
			wantKind: KindSession,
			wantMsg:  sessionMessage,
		},
		{
			name: "419 means session",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(statusSessionExpired)
				w.Write([]byte(`{"success":false}`))
			},
			wantKind: KindSession,
			wantMsg:  sessionMessage,
		},
		{
			name: "html on 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>login</html>"))
			},
			wantKind: KindNotJSON,
			wantMsg:  notJSONMessage,
		},
		{
			name: "validation",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"success":false,"errors":{"name":["Name is required."],"deadline_at":["Bad date."]}}`))
			},
			wantKind: KindValidation,
			wantMsg:  "Bad date.\nName is required.",
		},
		{
			name: "table status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"success":false}`))
			},
			wantKind: KindStatus,
			wantMsg:  statusMessages[http.StatusServiceUnavailable],
		},
		{
			name: "unknown status uses server message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"success":false,"message":"Already done."}`))
			},
			wantKind: KindStatus,
			wantMsg:  "Already done.",
		},
		{
			name: "success false on 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"success":false}`))
			},
			wantKind: KindStatus,
			wantMsg:  "fallback",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL, "tok").Get(context.Background(), "/tasks/1")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", apiErr.Kind, tt.wantKind)
			}
			if got := apiErr.UserMessage("fallback"); got != tt.wantMsg {
				t.Fatalf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL, "").Get(context.Background(), "/health")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindTransport {
		t.Fatalf("err = %v, want transport error", err)
	}
	if apiErr.UserMessage("x") != transportMessage {
		t.Fatalf("message = %q", apiErr.UserMessage("x"))
	}
}

func TestStatusMessageFallback(t *testing.T) {
	for _, code := range []int{401, 403, 404, 422, 429, 500, 503} {
		if StatusMessage(code, "fallback") == "fallback" {
			t.Fatalf("status %d has no message", code)
		}
	}
	if StatusMessage(418, "fallback") != "fallback" {
		t.Fatal("unknown status should fall back")
	}
}

func TestUpdateTaskSendsOverrideAndHeaders(t *testing.T) {
	var gotMethod, gotOverride, gotToken, gotAccept string
	var gotUniverses []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
		}
		gotMethod = r.Method
		gotOverride = r.FormValue("_method")
		gotToken = r.Header.Get("X-CSRF-TOKEN")
		gotAccept = r.Header.Get("Accept")
		gotUniverses = r.MultipartForm.Value["universe_ids[]"]
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"success":true,"task":{"id":7,"name":"pay rent","display_status":"open"}}`))
	}))
	defer srv.Close()

	task, err := New(srv.URL, "tok").UpdateTask(context.Background(), 7, url.Values{
		"name":           {"pay rent"},
		"universe_ids[]": {"1", "2"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.ID != 7 || task.DisplayStatus != "open" {
		t.Fatalf("task = %+v", task)
	}
	if gotMethod != http.MethodPost || gotOverride != "PUT" {
		t.Fatalf("method %s override %q", gotMethod, gotOverride)
	}
	if gotToken != "tok" || !strings.Contains(gotAccept, "application/json") {
		t.Fatalf("headers token=%q accept=%q", gotToken, gotAccept)
	}
	if strings.Join(gotUniverses, ",") != "1,2" {
		t.Fatalf("universes = %v", gotUniverses)
	}
}
