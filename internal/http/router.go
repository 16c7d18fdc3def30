package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/skovert/feedwall/internal/auth"
	"github.com/skovert/feedwall/internal/broadcast"
	authsvc "github.com/skovert/feedwall/internal/service/auth"
	"github.com/skovert/feedwall/internal/service/feed"
	"github.com/skovert/feedwall/internal/ws"
)

const healthCheckTimeout = 2 * time.Second

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     authsvc.Service
	feed     feed.Service
	images   *UploadHandler
	events   *broadcast.Publisher
	graphql  http.Handler
	upgrader websocket.Upgrader
	dbHealth func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc authsvc.Service, feedSvc feed.Service, uploads *UploadHandler, events *broadcast.Publisher, graphql http.Handler, imageDir string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		auth:    authSvc,
		feed:    feedSvc,
		images:  uploads,
		events:  events,
		graphql: graphql,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dbHealth: dbHealth,
	}
	r.register(imageDir)
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register(imageDir string) {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.HandleFunc("/auth/signup", r.audit(r.handleSignup))
	r.mux.HandleFunc("/auth/login", r.audit(r.handleLogin))
	r.mux.HandleFunc("/feed/posts", r.audit(r.handleFeedPosts))
	r.mux.HandleFunc("/feed/post", r.audit(r.requireAuth(r.handleCreatePost)))
	r.mux.HandleFunc("/feed/post/", r.audit(r.handlePostSubroutes))
	r.mux.HandleFunc("/post-image", r.audit(r.requireAuth(r.handlePostImage)))
	r.mux.HandleFunc("/ws/feed", r.audit(r.handleFeedWS))
	r.mux.HandleFunc("/events/feed", r.audit(r.handleFeedSSE))
	r.mux.Handle("/images/", http.StripPrefix("/images/", http.FileServer(http.Dir(imageDir))))
	if r.graphql != nil {
		r.mux.Handle("/graphql", r.optionalAuth(r.graphql))
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := r.auth.Signup(req.Context(), authsvc.SignupInput{
		Email:    payload.Email,
		Name:     payload.Name,
		Password: payload.Password,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user created",
		"userId":  user.ID,
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
	user, token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"userId": user.ID,
	})
}

// handleFeedPosts serves the paginated feed. Listing requires no auth.
func (r *Router) handleFeedPosts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	result, err := r.feed.List(req.Context(), page)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "posts fetched",
		"posts":      result.Posts,
		"totalItems": result.TotalItems,
	})
}

type postPayload struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
}

func (r *Router) handleCreatePost(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	identity, ok := auth.FromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for post creation", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload postPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	post, err := r.feed.Create(req.Context(), identity.UserID, feed.PostInput{
		Title:     payload.Title,
		Content:   payload.Content,
		ImagePath: payload.ImageURL,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "post created",
		"post":    post,
		"creator": post.Creator,
	})
}

func (r *Router) handlePostSubroutes(w http.ResponseWriter, req *http.Request) {
	postID := strings.TrimPrefix(req.URL.Path, "/feed/post/")
	if postID == "" || strings.Contains(postID, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		post, err := r.feed.Get(req.Context(), postID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "post fetched", "post": post})
	case http.MethodPut:
		r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
			r.handleUpdatePost(w, req, postID)
		})(w, req)
	case http.MethodDelete:
		r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
			r.handleDeletePost(w, req, postID)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleUpdatePost(w http.ResponseWriter, req *http.Request, postID string) {
	identity, ok := auth.FromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for post update", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload postPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	post, err := r.feed.Update(req.Context(), identity.UserID, postID, feed.PostInput{
		Title:     payload.Title,
		Content:   payload.Content,
		ImagePath: payload.ImageURL,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "post updated", "post": post})
}

func (r *Router) handleDeletePost(w http.ResponseWriter, req *http.Request, postID string) {
	identity, ok := auth.FromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for post delete", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if err := r.feed.Delete(req.Context(), identity.UserID, postID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "post deleted"})
}

// handleFeedWS upgrades the connection and attaches it to the feed stream.
func (r *Router) handleFeedWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.events.Subscribe(client)
	go func() {
		defer func() {
			r.events.Unsubscribe(client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// handleFeedSSE streams feed events as Server-Sent Events.
func (r *Router) handleFeedSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.events.Subscribe(client)
	defer r.events.Unsubscribe(client)

	select {
	case <-req.Context().Done():
		client.Close()
	case <-client.Done():
	}
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

// optionalAuth enriches the context when a valid bearer token is present but
// lets anonymous requests through; resolvers enforce auth per operation.
func (r *Router) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, req)
			return
		}
		token, err := bearerToken(header)
		if err != nil {
			next.ServeHTTP(w, req)
			return
		}
		user, err := r.auth.Authorize(req.Context(), token)
		if err != nil {
			next.ServeHTTP(w, req)
			return
		}
		ctx := auth.WithIdentity(req.Context(), auth.Identity{UserID: user.ID, Email: user.Email})
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
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
		if identity, ok := auth.FromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", identity.UserID)
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

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
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

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
