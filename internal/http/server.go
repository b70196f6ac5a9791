package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alphabot-ai/bloglist/internal/auth"
	"github.com/alphabot-ai/bloglist/internal/config"
	"github.com/alphabot-ai/bloglist/internal/listhelper"
	"github.com/alphabot-ai/bloglist/internal/metrics"
	"github.com/alphabot-ai/bloglist/internal/model"
	"github.com/alphabot-ai/bloglist/internal/rate"
	"github.com/alphabot-ai/bloglist/internal/store"
	"github.com/alphabot-ai/bloglist/internal/validation"
)

var errForbidden = errors.New("only the creator can delete a blog")

type Server struct {
	store   store.Store
	auth    *auth.Service
	limiter rate.Limiter
	cfg     config.Config
	version string
	router  http.Handler
}

func NewServer(st store.Store, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config, version string) *Server {
	s := &Server{store: st, auth: authSvc, limiter: limiter, cfg: cfg, version: version}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.cfg.Metrics.Enabled))

	if s.cfg.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("unknown endpoint"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", s.handleListBlogs)
			r.Post("/", s.handleCreateBlog)
			r.Get("/stats", s.handleBlogStats)
			r.Get("/{id}", s.handleGetBlog)
			r.Put("/{id}", s.handleUpdateBlog)
			r.Delete("/{id}", s.handleDeleteBlog)
		})
		r.Get("/authors/top", s.handleTopAuthor)

		r.Get("/users", s.handleListUsers)
		r.Post("/users", s.handleCreateUser)
		r.Post("/login", s.handleLogin)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": s.version})
}

func (s *Server) handleListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := s.store.ListBlogs(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blogs)
}

func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	blog, err := s.store.GetBlog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

type blogInput struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author"`
	URL    string `json:"url" validate:"required"`
	Likes  *int   `json:"likes" validate:"omitempty,min=0"`
}

func (s *Server) handleCreateBlog(w http.ResponseWriter, r *http.Request) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "blogs", s.cfg.Rate.WritePerMinute) {
		return
	}

	var in blogInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.URL = strings.TrimSpace(in.URL)
	if err := validation.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	blog := model.Blog{
		Title:     in.Title,
		Author:    in.Author,
		URL:       in.URL,
		UserID:    verified.UserID,
		CreatedAt: time.Now(),
	}
	if in.Likes != nil {
		blog.Likes = *in.Likes
	}
	if err := s.store.CreateBlog(r.Context(), &blog); err != nil {
		s.writeStoreError(w, err)
		return
	}
	metrics.BlogsCreated.Inc()

	created, err := s.store.GetBlog(r.Context(), blog.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type blogPatchInput struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	URL    *string `json:"url"`
	Likes  *int    `json:"likes" validate:"omitempty,min=0"`
}

func (s *Server) handleUpdateBlog(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "blogs", s.cfg.Rate.WritePerMinute) {
		return
	}

	var in blogPatchInput
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if err := validation.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for field, v := range map[string]*string{"title": in.Title, "url": in.URL} {
		if v != nil && strings.TrimSpace(*v) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("`%s` must not be empty", field))
			return
		}
	}

	blog, err := s.store.UpdateBlog(r.Context(), chi.URLParam(r, "id"), model.BlogPatch{
		Title:  in.Title,
		Author: in.Author,
		URL:    in.URL,
		Likes:  in.Likes,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (s *Server) handleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	verified, ok := s.requireAuth(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	blog, err := s.store.GetBlog(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if blog.UserID == "" || blog.UserID != verified.UserID {
		writeError(w, http.StatusForbidden, errForbidden)
		return
	}
	if err := s.store.DeleteBlog(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBlogStats(w http.ResponseWriter, r *http.Request) {
	blogs, err := s.store.ListBlogs(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listhelper.Summarize(blogs))
}

func (s *Server) handleTopAuthor(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = "blogs"
	}
	if by != "blogs" && by != "likes" {
		writeError(w, http.StatusBadRequest, errors.New("`by` must be one of blogs, likes"))
		return
	}

	blogs, err := s.store.ListBlogs(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if by == "likes" {
		top, err := listhelper.MostLikes(blogs)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, top.AsLikes())
		return
	}
	top, err := listhelper.MostBlogs(blogs)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, top.AsBlogs())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "users", s.cfg.Rate.WritePerMinute) {
		return
	}

	var in auth.NewUser
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	user, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if user.Blogs == nil {
		user.Blogs = []model.BlogRef{}
	}
	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.Rate.LoginPerMinute) {
		return
	}

	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	token, user, err := s.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.RecordLogin("failure")
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		metrics.RecordLogin("error")
		s.writeStoreError(w, err)
		return
	}
	metrics.RecordLogin("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    token.Token,
		"username": user.Username,
		"name":     user.Name,
	})
}

// writeStoreError maps domain errors to status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, err)
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	if limit <= 0 || s.limiter == nil {
		return true
	}
	key := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(key, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (auth.Verified, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeError(w, http.StatusUnauthorized, auth.ErrMissingToken)
		return auth.Verified{}, false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	verified, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		s.writeStoreError(w, err)
		return auth.Verified{}, false
	}
	return verified, true
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	return json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds() + 0.999)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": secs,
	})
}
