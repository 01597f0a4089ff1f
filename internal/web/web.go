package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"meetcal/internal/calendar"
	"meetcal/internal/config"
	"meetcal/internal/engine"
	"meetcal/internal/ics"
	"meetcal/internal/lifecycle"
	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/selection"
	"meetcal/internal/store"
)

// Loader produces a fresh meeting collection, typically by re-reading feeds.
type Loader func(ctx context.Context) ([]model.Meeting, error)

// Server exposes the engine over HTTP. The engine itself is single-threaded,
// so every handler touching it holds mu.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	store  *store.Memory
	loader Loader
	now    func() time.Time

	// journal is optional; when set, transitions are recorded before they
	// reach the store and obligations are served from its outbox.
	journal *store.Journal
	// intents, when set, is the engine's sink and feeds selection responses.
	intents *selection.Recorder

	mu     sync.Mutex
	engine *engine.Engine
}

// NewServer constructs a Server around an engine and a store.
func NewServer(cfg *config.Config, eng *engine.Engine, st *store.Memory, loader Loader) *Server {
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		store:  st,
		loader: loader,
		now:    time.Now,
		engine: eng,
	}
	s.registerRoutes()
	return s
}

// UseJournal makes the server record every transition in j.
func (s *Server) UseJournal(j *store.Journal) {
	s.journal = j
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg != nil {
		if l := newClientLimiter(s.cfg.RateLimit); l != nil {
			h = l.middleware(h)
		}
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured with both
// a username and a password.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
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
			w.Header().Set("WWW-Authenticate", `Basic realm="meetcal", charset="UTF-8"`)
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

// Run serves until ctx is canceled, reloading feeds on the configured cron
// schedule in the background.
func (s *Server) Run(ctx context.Context) error {
	stop, err := s.StartScheduler(ctx)
	if err != nil {
		return err
	}
	defer stop()

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// StartScheduler registers the feed reload job. The returned func stops the
// scheduler and waits for a running reload to finish.
func (s *Server) StartScheduler(ctx context.Context) (func(), error) {
	if s.loader == nil {
		return func() {}, nil
	}
	loc, _ := s.cfg.Location()
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(s.cfg.RefreshCron, func() { s.Reload(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("feed reload scheduled", "refresh", s.cfg.RefreshCron)
	return func() { <-c.Stop().Done() }, nil
}

// Reload replaces the store contents with a fresh load. A failed load keeps
// the current collection. The swap holds mu so it never lands inside a
// transition, and a selection whose meeting vanished is closed.
func (s *Server) Reload(ctx context.Context) {
	if s.loader == nil {
		return
	}
	meetings, err := s.loader(ctx)
	if err != nil {
		appLog.Error("feed reload failed; keeping current meetings", err)
		return
	}

	s.mu.Lock()
	s.store.Replace(meetings)
	if active, _, open := s.engine.Selection().Active(); open {
		if _, err := s.store.Get(active.ID); err != nil {
			s.engine.Selection().Clear()
		}
	}
	s.mu.Unlock()
	appLog.Info("feed reload completed", "meeting_count", len(meetings))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/view", s.handleView)
	s.mux.HandleFunc("GET /api/meetings/{id}", s.handleMeeting)
	s.mux.HandleFunc("POST /api/meetings/{id}/{transition}", s.handleTransition)
	s.mux.HandleFunc("POST /api/meetings/{id}/select", s.handleSelectionAction(selectMeeting))
	s.mux.HandleFunc("POST /api/meetings/{id}/request-cancel", s.handleSelectionAction(requestCancel))
	s.mux.HandleFunc("POST /api/meetings/{id}/request-reschedule", s.handleSelectionAction(requestReschedule))
	s.mux.HandleFunc("POST /api/meetings/{id}/join", s.handleSelectionAction(joinMeeting))
	s.mux.HandleFunc("GET /api/selection", s.handleSelection)
	s.mux.HandleFunc("DELETE /api/selection", s.handleSelectionClear)
	s.mux.HandleFunc("POST /api/selection/confirm", s.handleSelectionConfirm)
	s.mux.HandleFunc("POST /api/selection/complete", s.handleSelectionComplete)
	s.mux.HandleFunc("GET /api/meetings.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/obligations", s.handleObligations)
	s.mux.HandleFunc("POST /api/obligations/{id}/done", s.handleObligationDone)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar renders the current view.
//
// GET /api/calendar?view=month&anchor=2024-02-15
//   - view:   week | month (default: the server's current mode)
//   - anchor: YYYY-MM-DD    (default: the server's current anchor)
//
// Query overrides apply to this response only; use /api/navigate and
// /api/view to move the shared view.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	layout := s.engine.Layout()
	s.mu.Unlock()

	if v := q.Get("view"); v != "" {
		mode, err := calendar.ParseViewMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		layout.Mode = mode
	}
	if a := q.Get("anchor"); a != "" {
		anchor, err := calendar.ParseDate(a)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		layout.Anchor = anchor
	}

	writeJSON(w, http.StatusOK, engine.RenderLayout(s.store.Snapshot(), layout))
}

// handleNavigate moves the shared view: POST /api/navigate?direction=next
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	dir, err := calendar.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.Navigate(dir)
	var view engine.View
	if err == nil {
		view = s.engine.Render(s.store.Snapshot())
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleView switches the shared view mode: POST /api/view?mode=month
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	mode, err := calendar.ParseViewMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	err = s.engine.SetViewMode(mode)
	view := s.engine.Render(s.store.Snapshot())
	s.mu.Unlock()

	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleTransition applies a lifecycle transition and persists the result.
//
// POST /api/meetings/{id}/cancel     {"reason": "...", "canceled_by": "organizer"}
// POST /api/meetings/{id}/reschedule {"starts_at": "2024-03-01T10:00:00Z"}
// POST /api/meetings/{id}/complete
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	t, err := lifecycle.ParseTransition(r.PathValue("transition"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	res, err := s.engine.ApplyTransition(s.store.Snapshot(), r.PathValue("id"), t, payload)
	if err == nil {
		err = s.commit(r.Context(), res)
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	version := s.store.Version()
	body := ics.Encode(s.store.Snapshot(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", strconv.Quote(strconv.FormatUint(version, 10)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleObligations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "no transition journal configured")
		return
	}
	pending, err := s.journal.PendingObligations(r.Context())
	if err != nil {
		appLog.Error("failed to list obligations", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending == nil {
		pending = []lifecycle.Obligation{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleObligationDone(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "no transition journal configured")
		return
	}
	if err := s.journal.MarkDone(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrMeetingNotFound), errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrObligationNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, selection.ErrNoActiveFlow), errors.Is(err, selection.ErrWrongStage):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidReschedule),
		errors.Is(err, lifecycle.ErrEmptyCancellationReason),
		errors.Is(err, lifecycle.ErrUnknownParty):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
