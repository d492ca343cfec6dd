package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"deskpanel/internal/auth"
	"deskpanel/internal/config"
	"deskpanel/internal/connectivity"
	"deskpanel/internal/engine"
	"deskpanel/internal/model"
	"deskpanel/internal/notify"
	"deskpanel/internal/obs"
	"deskpanel/internal/store"
)

type Server struct {
	cfg      config.Config
	engine   *engine.Engine
	store    store.Store
	observer *connectivity.Observer
	limiter  *ipLimiter
}

func NewServer(cfg config.Config, eng *engine.Engine, st store.Store, observer *connectivity.Observer) *Server {
	return &Server{
		cfg:      cfg,
		engine:   eng,
		store:    st,
		observer: observer,
		limiter:  newIPLimiter(cfg.RateLimitBurst, cfg.RateLimitPerSecond),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(obs.Instrument)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", obs.Handler())

	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/auth/logout", s.handleLogout)

	r.With(s.authMiddleware).Get("/lockers", s.handleListLockers)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/lockers", s.handleAddLocker)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Patch("/lockers/{lockerId}", s.handleUpdateLocker)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Delete("/lockers/{lockerId}", s.handleDeleteLocker)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/lockers/lock-all", s.handleLockAll)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/lockers/{lockerId}/lock", s.handleLockLocker)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/lockers/{lockerId}/unlock", s.handleUnlockLocker)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/lockers/{lockerId}/toggle", s.handleToggleLocker)

	r.With(s.authMiddleware).Get("/desk", s.handleGetDesk)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/desk/exam-mode/toggle", s.handleToggleExamMode)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/desk/research", s.handleResearch)
	r.With(s.authMiddleware, s.rateLimitMiddleware).Post("/desk/exam-action", s.handleExamAction)

	r.With(s.authMiddleware).Get("/logs", s.handleListLogs)

	r.With(s.authMiddleware).Get("/notifications", s.handleListNotifications)
	r.With(s.authMiddleware).Post("/notifications/{notificationId}/read", s.handleMarkNotificationRead)
	r.With(s.authMiddleware).Delete("/notifications", s.handleClearNotifications)

	r.With(s.authMiddleware).Get("/connectivity", s.handleConnectivity)
	r.With(s.authMiddleware).Post("/connectivity/dismiss", s.handleDismissConnectivity)

	r.With(s.authMiddleware).Get("/events", s.handleEvents)

	return r
}

// Auth

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), claims)))
	})
}

// Rate limiting: token bucket per client IP on mutating routes.

type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	burst     int
	perSecond int
}

type ipBucket struct {
	lim *rate.Limiter
	ts  time.Time
}

func newIPLimiter(burst, perSecond int) *ipLimiter {
	if burst <= 0 {
		burst = 20
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	return &ipLimiter{
		buckets:   make(map[string]*ipBucket),
		burst:     burst,
		perSecond: perSecond,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	const ttl = 5 * time.Minute

	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for key, b := range l.buckets {
		if now.Sub(b.ts) > ttl {
			delete(l.buckets, key)
		}
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(rate.Limit(l.perSecond), l.burst)}
		l.buckets[ip] = b
	}
	b.ts = now
	return b.lim.Allow()
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !s.limiter.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Models

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type deskResponse struct {
	ExamMode bool           `json:"examMode"`
	DeskMode model.DeskMode `json:"deskMode"`
}

type createLockerRequest struct {
	Location string `json:"location"`
}

type patchLockerRequest struct {
	Location *string `json:"location"`
	Status   *string `json:"status"`
}

// Handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.RecordLogin(r.Context()))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.Logout(r.Context()))
}

func (s *Server) handleListLockers(w http.ResponseWriter, r *http.Request) {
	lockers, err := s.store.Lockers(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lockers)
}

func (s *Server) handleAddLocker(w http.ResponseWriter, r *http.Request) {
	var req createLockerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	locker, res := s.engine.AddLocker(r.Context(), store.LockerFields{Location: strings.TrimSpace(req.Location)})
	if !res.Success() {
		writeResult(w, res)
		return
	}
	writeJSON(w, http.StatusCreated, locker)
}

func (s *Server) handleUpdateLocker(w http.ResponseWriter, r *http.Request) {
	var req patchLockerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Location == nil && req.Status == nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	update := store.LockerUpdate{Location: req.Location}
	if req.Status != nil {
		status, err := normalizeStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		update.Status = &status
	}
	writeResult(w, s.engine.UpdateLocker(r.Context(), chi.URLParam(r, "lockerId"), update))
}

func (s *Server) handleDeleteLocker(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.DeleteLocker(r.Context(), chi.URLParam(r, "lockerId")))
}

func (s *Server) handleLockAll(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.LockAllLockers(r.Context()))
}

func (s *Server) handleLockLocker(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.LockLocker(r.Context(), chi.URLParam(r, "lockerId")))
}

func (s *Server) handleUnlockLocker(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.UnlockLocker(r.Context(), chi.URLParam(r, "lockerId")))
}

func (s *Server) handleToggleLocker(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.ToggleLocker(r.Context(), chi.URLParam(r, "lockerId")))
}

func (s *Server) handleGetDesk(w http.ResponseWriter, r *http.Request) {
	examMode, err := s.store.ExamMode(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, deskResponse{
		ExamMode: examMode,
		DeskMode: model.DeskModeFor(examMode),
	})
}

func (s *Server) handleToggleExamMode(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.ToggleExamMode(r.Context()))
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.PerformResearch(r.Context()))
}

func (s *Server) handleExamAction(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.PerformExamAction(r.Context()))
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.cfg.LogListLimit)
	logs, err := s.store.Logs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notificationsFor(r).List())
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	s.notificationsFor(r).MarkRead(chi.URLParam(r, "notificationId"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.notificationsFor(r).Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.observer.State())
}

func (s *Server) handleDismissConnectivity(w http.ResponseWriter, r *http.Request) {
	s.observer.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams store change events over SSE. Subscribers re-read the
// affected resource; the event carries only the kind and timestamp.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := s.store.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// notificationsFor resolves the per-user queue. The auth middleware runs
// ahead of every notification route, so claims are always present here.
func (s *Server) notificationsFor(r *http.Request) *notify.Queue {
	userID := ""
	if claims := auth.FromContext(r.Context()); claims != nil {
		userID = claims.UserID
	}
	return s.engine.Notifications().For(userID)
}

// Helpers

func writeResult(w http.ResponseWriter, res engine.Result) {
	status := http.StatusOK
	switch res.Status {
	case engine.StatusDenied:
		status = http.StatusForbidden
	case engine.StatusUnauthenticated:
		status = http.StatusUnauthorized
	case engine.StatusBackendError:
		status = http.StatusBadGateway
		if errors.Is(res.Err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, resultResponse{Success: res.Success(), Message: res.Message})
}

func normalizeStatus(value string) (model.LockerStatus, error) {
	switch value {
	case "locked":
		return model.LockerLocked, nil
	case "unlocked":
		return model.LockerUnlocked, nil
	default:
		return "", errors.New("invalid status")
	}
}

func parseLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
