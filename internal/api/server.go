package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pbaille/funnel/internal/auth"
	"github.com/pbaille/funnel/internal/domain"
	"github.com/pbaille/funnel/internal/logger"
	"github.com/pbaille/funnel/internal/service"
	"github.com/pbaille/funnel/internal/store"
)

const maxBodyBytes = 1 << 20

// Options configures a Server
type Options struct {
	Addr           string
	AllowedOrigins []string
	// Auth validates bearer tokens. When nil every request runs as DefaultUser.
	Auth        *auth.Authenticator
	DefaultUser string
	Metrics     *Metrics
	Logger      *logger.Logger
}

// Server handles HTTP requests for the resource API
type Server struct {
	svc     *service.Service
	opts    Options
	log     *logger.Logger
	metrics *Metrics
}

// New creates a new API server
func New(svc *service.Service, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics("funnel")
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}
	return &Server{svc: svc, opts: opts, log: log.With("component", "api"), metrics: metrics}
}

// Handler builds the router with all middleware and routes
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.log.Desugar()))
	router.Use(s.metrics.Middleware)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", s.health)
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate(s.opts.Auth, s.opts.DefaultUser))

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", s.listResources)
			r.Post("/", s.addResource)
			r.Get("/{id}", s.getResource)
			r.Patch("/{id}", s.updateResource)
			r.Delete("/{id}", s.deleteResource)
		})

		r.Get("/roadmap", s.roadmap)
		r.Get("/categories", s.listCategories)
		r.Post("/categorize", s.categorize)
		r.Get("/metadata", s.metadata)
		r.Post("/import", s.importURLs)
	})

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddResourceRequest is the request body for adding a resource
type AddResourceRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Notes string `json:"notes"`
	// Autofill fetches the page metadata for a missing title or notes
	Autofill bool `json:"autofill,omitempty"`
}

func (s *Server) addResource(w http.ResponseWriter, r *http.Request) {
	var req AddResourceRequest
	if !decode(w, r, &req) {
		return
	}

	in := domain.NewResource{Title: req.Title, URL: req.URL, Notes: req.Notes}
	userID := currentUser(r)

	var (
		res *domain.Resource
		err error
	)
	if req.Autofill {
		res, err = s.svc.AddURL(r.Context(), userID, req.URL, in)
	} else {
		res, err = s.svc.Add(r.Context(), userID, in)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.ResourcesAdded.Inc()
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Get(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	resources, err := s.svc.List(r.Context(), currentUser(r), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": resources,
		"count":     len(resources),
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	var upd domain.ResourceUpdate
	if !decode(w, r, &upd) {
		return
	}

	res, err := s.svc.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), currentUser(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.ResourcesDeleted.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) roadmap(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	nodes, err := s.svc.Roadmap(r.Context(), currentUser(r), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.RoadmapBuilds.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": nodes,
	})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context(), currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": cats,
	})
}

// CategorizeRequest is the request body for a category preview
type CategorizeRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) categorize(w http.ResponseWriter, r *http.Request) {
	var req CategorizeRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.svc.Categorize(req.Title, req.Content),
	})
}

func (s *Server) metadata(w http.ResponseWriter, r *http.Request) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'url' is required")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Metadata(r.Context(), u))
}

// ImportRequest is the request body for a bulk URL import
type ImportRequest struct {
	URLs []string `json:"urls"`
}

// ImportResult is the outcome of importing one URL
type ImportResult struct {
	URL      string           `json:"url"`
	Resource *domain.Resource `json:"resource,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (s *Server) importURLs(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}

	results, err := s.svc.Import(r.Context(), currentUser(r), req.URLs)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]ImportResult, len(results))
	added := 0
	for i, res := range results {
		out[i] = ImportResult{URL: res.URL, Resource: res.Resource}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			continue
		}
		added++
	}
	s.metrics.ResourcesAdded.Add(float64(added))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": out,
		"added":   added,
	})
}

// fail maps service errors onto HTTP statuses
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, store.ErrAmbiguousID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoUser):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestID", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func currentUser(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

func parseFilter(w http.ResponseWriter, r *http.Request) (domain.ResourceFilter, bool) {
	q := r.URL.Query()
	filter := domain.ResourceFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		Sort:     domain.SortOption(q.Get("sort")),
	}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return filter, false
		}
		filter.Limit = n
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return filter, false
		}
		filter.Offset = n
	}
	return filter, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
