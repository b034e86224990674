package server

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"universes/internal/display"
	"universes/internal/service"
	"universes/internal/timeunit"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Params holds the dependencies needed for the API server.
type Params struct {
	fx.In

	Logger     *zap.Logger
	CSRFToken  string `name:"csrf_token"`
	Tasks      *service.TaskService
	Universes  *service.UniverseService
	Ideas      *service.IdeaService
	Recurring  *service.RecurringTaskService
	Logs       *service.LogService
	Clock      func() time.Time `optional:"true"`
}

// Server is the JSON API behind the task and universe cards.
type Server struct {
	logger    *zap.Logger
	csrfToken string
	now       func() time.Time
	tmpl      *template.Template

	tasks     *service.TaskService
	universes *service.UniverseService
	ideas     *service.IdeaService
	recurring *service.RecurringTaskService
	logs      *service.LogService
}

// New builds a server. An empty CSRF token is replaced by a random one.
func New(p Params) (*Server, error) {
	token := strings.TrimSpace(p.CSRFToken)
	if token == "" {
		token = uuid.NewString()
	}
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("cards").Funcs(template.FuncMap{
		"deadline":  display.Deadline,
		"enum":      display.Enum,
		"recurring": display.Recurring,
		"estimate": func(minutes *int) string {
			return timeunit.Label(minutes, timeunit.Minutes)
		},
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		logger:    logger.Named("http"),
		csrfToken: token,
		now:       now,
		tmpl:      tmpl,
		tasks:     p.Tasks,
		universes: p.Universes,
		ideas:     p.Ideas,
		recurring: p.Recurring,
		logs:      p.Logs,
	}, nil
}

// CSRFToken returns the token unsafe requests must carry.
func (s *Server) CSRFToken() string {
	return s.csrfToken
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /csrf-token", s.handleCSRFToken)

	mux.HandleFunc("GET /tasks", s.handleTaskList)
	mux.HandleFunc("POST /tasks", s.handleTaskCreate)
	mux.HandleFunc("POST /tasks/update-order", s.handleTaskUpdateOrder)
	mux.HandleFunc("GET /tasks/{id}", s.handleTaskGet)
	mux.HandleFunc("PUT /tasks/{id}", s.handleTaskUpdate)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleTaskDelete)
	mux.HandleFunc("POST /tasks/{id}/complete", s.handleTaskComplete)
	mux.HandleFunc("POST /tasks/{id}/skip", s.handleTaskSkip)
	mux.HandleFunc("POST /tasks/{id}/unskip", s.handleTaskUnskip)
	mux.HandleFunc("POST /tasks/{id}/log", s.handleTaskLog)

	mux.HandleFunc("GET /universes", s.handleUniverseList)
	mux.HandleFunc("POST /universes", s.handleUniverseCreate)
	mux.HandleFunc("POST /universes/update-weekly-order", s.handleUniverseWeeklyOrder)
	mux.HandleFunc("GET /universes/{id}", s.handleUniverseGet)
	mux.HandleFunc("PUT /universes/{id}", s.handleUniverseUpdate)
	mux.HandleFunc("DELETE /universes/{id}", s.handleUniverseDelete)
	mux.HandleFunc("POST /universes/{id}/log", s.handleUniverseLog)

	mux.HandleFunc("GET /recurring-tasks", s.handleRecurringList)
	mux.HandleFunc("POST /recurring-tasks", s.handleRecurringCreate)

	mux.HandleFunc("POST /ideas", s.handleIdeaCreate)
	mux.HandleFunc("POST /idea-pools", s.handleIdeaPoolCreate)
	mux.HandleFunc("PUT /ideas/{id}/pools", s.handleIdeaPools)
	mux.HandleFunc("POST /ideas/{id}/log", s.handleIdeaLog)

	mux.HandleFunc("POST /logs", s.handleStandaloneLog)

	return s.withRequestLog(s.withMethodOverride(s.withCSRF(mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": s.csrfToken})
}
