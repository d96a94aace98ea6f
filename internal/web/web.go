package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"volcal/internal/config"
	"volcal/internal/events"
	appLog "volcal/internal/log"
	"volcal/internal/model"
	"volcal/internal/store"
)

// EventStore is the write side used by the events API.
type EventStore interface {
	Save(ctx context.Context, e model.CalendarEvent) (model.CalendarEvent, error)
	Get(ctx context.Context, id string) (model.CalendarEvent, error)
	Delete(ctx context.Context, id string) error
}

const layoutCacheTTL = 30 * time.Second

// Server provides the calendar page and the JSON API.
type Server struct {
	cfg   *config.Config
	svc   *events.Service
	store EventStore
	mux   *http.ServeMux
	now   func() time.Time

	// Month layouts are cached briefly; feed expansion is the expensive
	// part and the page plus its snapshot ask for the same month.
	layoutMu    sync.RWMutex
	layoutCache map[string]layoutCacheEntry

	// ready is closed once the listener is bound; addr is set before that.
	ready chan struct{}
	addr  string
}

type layoutCacheEntry struct {
	layout    events.MonthLayout
	updatedAt time.Time
}

// NewServer constructs a new Server. st may be nil for a read-only server.
func NewServer(cfg *config.Config, svc *events.Service, st EventStore) *Server {
	s := &Server{
		cfg:         cfg,
		svc:         svc,
		store:       st,
		mux:         http.NewServeMux(),
		now:         time.Now,
		layoutCache: make(map[string]layoutCacheEntry),
		ready:       make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped with Basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="volcal", charset="UTF-8"`)
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

// Ready is closed when ListenAndServe has bound its listener.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address. Valid after Ready is closed.
func (s *Server) Addr() string { return s.addr }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	s.addr = ln.Addr().String()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.addr)
		errCh <- srv.Serve(ln)
	}()
	close(s.ready)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendarJSON)

	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /events/{target}", s.handleEventPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured calendar snapshot.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile 가 파일 존재/권한 문제에 대해 적절한 상태코드를 반환해 준다.
	http.ServeFile(w, r, s.cfg.Preview.Path)
}

// monthLayout returns the (possibly cached) layout for the month of ref.
func (s *Server) monthLayout(ctx context.Context, ref time.Time) (events.MonthLayout, error) {
	key := ref.In(s.svc.Location()).Format(monthFormat)
	now := s.now()

	s.layoutMu.RLock()
	entry, ok := s.layoutCache[key]
	s.layoutMu.RUnlock()
	if ok && now.Sub(entry.updatedAt) < layoutCacheTTL && !entry.updatedAt.Before(s.svc.RefreshedAt()) {
		return entry.layout, nil
	}

	ml, err := s.svc.Layout(ctx, ref)
	if err != nil {
		return ml, err
	}

	s.layoutMu.Lock()
	s.layoutCache[key] = layoutCacheEntry{layout: ml, updatedAt: now}
	s.layoutMu.Unlock()
	return ml, nil
}

// invalidateLayouts drops all cached layouts after a write.
func (s *Server) invalidateLayouts() {
	s.layoutMu.Lock()
	clear(s.layoutCache)
	s.layoutMu.Unlock()
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

// isValidationError reports whether err came from model validation or
// request parsing rather than storage.
func isValidationError(err error) bool {
	var ve validationError
	return errors.As(err, &ve) || errors.Is(err, model.ErrInvalid)
}

type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

var errNoStore = errors.New("event store not configured")

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return false
	}
	return true
}

func notFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
