package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slotcal/internal/config"
	appLog "slotcal/internal/log"
	"slotcal/internal/model"
	"slotcal/internal/slots"
	"slotcal/internal/store"
	"slotcal/internal/validate"
	"slotcal/internal/workflow"
)

// localLayout is the form an HTML datetime-local input submits.
const localLayout = "2006-01-02T15:04"

// Server exposes the calendar over a JSON API.
type Server struct {
	cfg      *config.Config
	loc      *time.Location
	store    *store.Store
	slots    *slots.Service
	workflow *workflow.Workflow

	// mu serializes every dialog operation, so only one commit is in flight
	// and each one validates against the store it is applied to.
	mu sync.Mutex

	router chi.Router
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config   *config.Config
	Location *time.Location
	Store    *store.Store
	Slots    *slots.Service
	Workflow *workflow.Workflow
}

func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Store == nil || d.Slots == nil || d.Workflow == nil {
		return nil, errors.New("web: config, store, slots and workflow are required")
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:      d.Config,
		loc:      loc,
		store:    d.Store,
		slots:    d.Slots,
		workflow: d.Workflow,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(appLog.Middleware())

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if rl := s.cfg.RateLimit; rl.Requests > 0 {
			r.Use(rateLimit(rl.Requests, rl.Window))
		}

		r.Get("/events", s.handleEvents)
		r.Get("/events.ics", s.handleEventsICS)
		r.Get("/slots", s.handleSlot)
		r.Get("/days/{date}", s.handleDay)
		r.Get("/month", s.handleMonth)
		r.Post("/overlaps", s.handleOverlaps)
		r.Post("/selection", s.handleSelection)

		r.Route("/dialog", func(r chi.Router) {
			r.Get("/", s.handleDialog)
			r.Patch("/", s.handleDialogPatch)
			r.Delete("/", s.handleDialogClose)
			r.Post("/create", s.handleDialogCreate)
			r.Post("/edit", s.handleDialogEdit)
			r.Post("/submit", s.handleDialogSubmit)
			r.Post("/delete", s.handleDialogDelete)
			r.Post("/confirm", s.handleDialogConfirm)
			r.Post("/cancel", s.handleDialogCancel)
		})
	})
	return r
}

func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		}),
	)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="slotcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// parseTime accepts RFC3339 or a datetime-local value, the latter read in
// the server's location.
func (s *Server) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(s.loc), nil
	}
	for _, layout := range []string{localLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or %s", v, localLayout)
}

// parseOptionalTime is parseTime that maps "" to the zero time.
func (s *Server) parseOptionalTime(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, nil
	}
	return s.parseTime(v)
}

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// decodeJSON reads a JSON body of at most maxRequestBody bytes into v. An
// empty body leaves v untouched. On failure the error response is written
// and false returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON payload")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error  string      `json:"error"`
	Rule   string      `json:"rule,omitempty"`
	Dialog *dialogView `json:"dialog,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeOpError maps a domain error to its HTTP status. Callers hold s.mu so
// the dialog snapshot matches the failure.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		view := s.dialogViewLocked()
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  verr.Error(),
			Rule:   verr.Rule.String(),
			Dialog: &view,
		})
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, slots.ErrPastSlot),
		errors.Is(err, slots.ErrSlotBooked):
		writeError(w, http.StatusConflict, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
