package httpx

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

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orenccl/next-todolist/internal/repository"
	"github.com/orenccl/next-todolist/internal/service/auth"
	"github.com/orenccl/next-todolist/internal/service/todo"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	todos    todo.Service
	sessions Sessions
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitRegister  = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, todoSvc todo.Service, sessions Sessions, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		todos:    todoSvc,
		sessions: sessions,
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/auth/register", r.audit(r.withRateLimit("/api/auth/register", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleRegister)))
	r.mux.HandleFunc("/api/auth/login", r.audit(r.withRateLimit("/api/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/api/auth/logout", r.audit(r.handleLogout))
	r.mux.HandleFunc("/api/auth/me", r.audit(r.handleMe))
	r.mux.HandleFunc("/api/todos", r.audit(r.handlerSessionRate("/api/todos", rateLimitUserWrite, rateWindowDefault, r.handleTodos)))
	r.mux.HandleFunc("/api/todos/bulk", r.audit(r.handlerSessionRate("/api/todos/bulk", rateLimitUserWrite, rateWindowDefault, r.handleTodoBulk)))
	r.mux.HandleFunc("/api/todos/stats", r.audit(r.handlerSessionRate("/api/todos/stats", rateLimitUserRead, rateWindowDefault, r.handleTodoStats)))
	r.mux.HandleFunc("/api/todos/", r.audit(r.handlerSessionRate("/api/todos/", rateLimitUserRead, rateWindowDefault, r.handleTodoByIDRoute)))
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, seeded, err := r.auth.Register(req.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			r.internalError(w, req, "registration failed", err)
		}
		return
	}
	if err := r.sessions.Issue(w, user.Session()); err != nil {
		r.internalError(w, req, "session issue failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
		"initialTodosCount": seeded,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			r.internalError(w, req, "login failed", err)
		}
		return
	}
	if err := r.sessions.Issue(w, user.Session()); err != nil {
		r.internalError(w, req, "session issue failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// handleLogout clears the cookie unconditionally; logging out without
// a session still succeeds.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	r.sessions.Revoke(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// handleMe reconstructs the user from the session payload alone; the
// store is not consulted.
func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	sess, ok := r.sessions.Read(req)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":    sess.UserID,
			"email": sess.Email,
			"name":  sess.Name,
		},
	})
}

func (r *Router) handleTodos(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.handleTodoList(w, req)
	case http.MethodPost:
		r.handleTodoCreate(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTodoList(w http.ResponseWriter, req *http.Request) {
	sess, ok := sessionFromContext(req.Context())
	if !ok {
		r.missingSessionContext(w, req)
		return
	}
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	in := todo.ListInput{
		Page:         page,
		Limit:        limit,
		SortBy:       q.Get("sortBy"),
		SortOrder:    q.Get("sortOrder"),
		Priority:     q.Get("priority"),
		IsDone:       q.Get("isDone"),
		Search:       q.Get("search"),
		DeadlineFrom: q.Get("deadlineFrom"),
		DeadlineTo:   q.Get("deadlineTo"),
	}
	if in.SortBy == "" {
		in.SortBy = "createdAt"
	}
	todos, pagination, err := r.todos.List(req.Context(), sess.UserID, in)
	if err != nil {
		r.writeTodoError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       todos,
		"pagination": pagination,
	})
}

func (r *Router) handleTodoCreate(w http.ResponseWriter, req *http.Request) {
	sess, ok := sessionFromContext(req.Context())
	if !ok {
		r.missingSessionContext(w, req)
		return
	}
	var payload struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
		Priority    string  `json:"priority"`
		Deadline    *string `json:"deadline"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := r.todos.Create(req.Context(), sess.UserID, todo.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Priority:    payload.Priority,
		Deadline:    payload.Deadline,
	})
	if err != nil {
		r.writeTodoError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleTodoByIDRoute serves /api/todos/{id}; the bulk and stats
// subroutes are registered as exact mux patterns and never reach here.
func (r *Router) handleTodoByIDRoute(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/api/todos/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	r.handleTodoByID(w, req, id)
}

func (r *Router) handleTodoByID(w http.ResponseWriter, req *http.Request, id string) {
	sess, ok := sessionFromContext(req.Context())
	if !ok {
		r.missingSessionContext(w, req)
		return
	}
	switch req.Method {
	case http.MethodGet:
		found, err := r.todos.Get(req.Context(), sess.UserID, id)
		if err != nil {
			r.writeTodoError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	case http.MethodPut:
		in, ok := decodeTodoPatch(w, req)
		if !ok {
			return
		}
		updated, err := r.todos.Update(req.Context(), sess.UserID, id, in)
		if err != nil {
			r.writeTodoError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.todos.Delete(req.Context(), sess.UserID, id); err != nil {
			r.writeTodoError(w, req, err)
			return
		}
		writeMessage(w, http.StatusOK, "Todo deleted successfully")
	default:
		r.methodNotAllowed(w)
	}
}

// decodeTodoPatch decodes a partial update, distinguishing absent
// fields from explicit nulls.
func decodeTodoPatch(w http.ResponseWriter, req *http.Request) (todo.UpdateInput, bool) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return todo.UpdateInput{}, false
	}
	var in todo.UpdateInput
	stringField := func(key string) (*string, bool, bool) {
		value, present := raw[key]
		if !present {
			return nil, false, true
		}
		var s *string
		if err := json.Unmarshal(value, &s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return nil, false, false
		}
		return s, true, true
	}

	var ok bool
	if in.Title, in.TitleSet, ok = stringField("title"); !ok {
		return todo.UpdateInput{}, false
	}
	if in.Description, in.DescriptionSet, ok = stringField("description"); !ok {
		return todo.UpdateInput{}, false
	}
	if in.Priority, in.PrioritySet, ok = stringField("priority"); !ok {
		return todo.UpdateInput{}, false
	}
	if in.Deadline, in.DeadlineSet, ok = stringField("deadline"); !ok {
		return todo.UpdateInput{}, false
	}
	if value, present := raw["isDone"]; present {
		var done *bool
		if err := json.Unmarshal(value, &done); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return todo.UpdateInput{}, false
		}
		in.IsDone = done
	}
	return in, true
}

func (r *Router) handleTodoBulk(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	sess, ok := sessionFromContext(req.Context())
	if !ok {
		r.missingSessionContext(w, req)
		return
	}
	var payload struct {
		Action  string   `json:"action"`
		TodoIDs []string `json:"todoIds"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	affected, err := r.todos.BulkApply(req.Context(), sess.UserID, payload.Action, payload.TodoIDs)
	if err != nil {
		r.writeTodoError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Bulk " + payload.Action + " completed",
		"affectedCount": affected,
	})
}

func (r *Router) handleTodoStats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	sess, ok := sessionFromContext(req.Context())
	if !ok {
		r.missingSessionContext(w, req)
		return
	}
	stats, err := r.todos.Report(req.Context(), sess.UserID, req.URL.Query().Get("period"))
	if err != nil {
		r.writeTodoError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// writeTodoError maps service errors to their status codes. Anything
// unexpected becomes a generic 500.
func (r *Router) writeTodoError(w http.ResponseWriter, req *http.Request, err error) {
	var verr todo.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Todo not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		r.internalError(w, req, "todo operation failed", err)
	}
}

func (r *Router) internalError(w http.ResponseWriter, req *http.Request, msg string, err error) {
	r.logger.Error(msg, "error", err, "path", req.URL.Path)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (r *Router) missingSessionContext(w http.ResponseWriter, req *http.Request) {
	r.logger.Error("session context missing", "path", req.URL.Path)
	writeError(w, http.StatusInternalServerError, "authorization context missing")
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		route := routeLabel(req.URL.Path)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if sess, ok := sessionFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", sess.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

// routeLabel collapses id paths so metric cardinality stays bounded.
func routeLabel(path string) string {
	if !strings.HasPrefix(path, "/api/todos/") {
		return path
	}
	switch strings.TrimPrefix(path, "/api/todos/") {
	case "bulk", "stats", "":
		return path
	}
	return "/api/todos/{id}"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
