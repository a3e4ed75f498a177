// Package api provides REST API endpoints for decoding soundings and reading
// stored profiles.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"sounding_parser/internal/bulletin"
	"sounding_parser/internal/profile"
	"sounding_parser/internal/sounding"
	"sounding_parser/internal/storage"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 200
)

// ProfileStore reads stored profiles. *storage.DB satisfies it.
type ProfileStore interface {
	Latest(ctx context.Context, station string) (*storage.Record, error)
	List(ctx context.Context, station string, limit int) ([]storage.Record, error)
}

// Config holds configuration for the API server.
type Config struct {
	Addr           string
	AuthEnabled    bool
	APIKeys        []string      // List of valid API keys.
	RequestTimeout time.Duration // Zero means 30s.
	CacheTTL       time.Duration // Zero disables the decode cache.
}

// Server serves the decode and profile endpoints.
type Server struct {
	store    ProfileStore
	cfg      Config
	apiKeys  map[string]bool
	decoded  *cache.Cache
	validate *validator.Validate
	log      *slog.Logger
}

// NewServer creates a new API server. store may be nil, in which case the
// profile endpoints answer 503.
func NewServer(store ProfileStore, cfg Config, log *slog.Logger) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		store:    store,
		cfg:      cfg,
		apiKeys:  keys,
		validate: validator.New(),
		log:      log,
	}
	if cfg.CacheTTL > 0 {
		s.decoded = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return s
}

// Handler returns the complete HTTP handler with middleware, rooted at /api/v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())
	return r
}

// Router returns the API routes without the outer middleware, for embedding in
// other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Health check (no auth required).
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.AuthEnabled {
			r.Use(s.authMiddleware)
		}
		r.Post("/decode", s.handleDecode)
		r.Get("/profiles/{station}", s.handleListProfiles)
		r.Get("/profiles/{station}/latest", s.handleLatestProfile)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API listening", "addr", s.cfg.Addr, "auth", s.cfg.AuthEnabled, "store", s.store != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Query parameter for simple testing.
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DecodeRequest is the body of POST /decode. Text holds a whole bulletin and
// is split into its parts when TTAA and TTBB are not given separately.
type DecodeRequest struct {
	TTAA string `json:"ttaa" validate:"required_without=Text,max=8192"`
	TTBB string `json:"ttbb" validate:"max=8192"`
	Text string `json:"text" validate:"required_without=TTAA,max=65536"`
}

// DecodeResponse is the result of a decode. Profile is nil only when the
// input carried no TTAA report.
type DecodeResponse struct {
	Profile *sounding.Profile `json:"profile"`
	Errors  []string          `json:"errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	// Without a ttaa field the TTAA comes from text. An explicit ttbb field
	// wins over a TTBB found in text.
	ttaa, ttbb := req.TTAA, req.TTBB
	if ttaa == "" {
		parts := bulletin.Split(req.Text)
		ttaa = parts.TTAA
		if ttbb == "" {
			ttbb = parts.TTBB
		}
	}

	key := cacheKey(ttaa, ttbb)
	if s.decoded != nil {
		if v, ok := s.decoded.Get(key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeDecode(w, v.(DecodeResponse))
			return
		}
	}

	p, errs := profile.Decode(ttaa, ttbb)
	resp := DecodeResponse{Profile: p, Errors: make([]string, 0, len(errs))}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, err.Error())
	}

	if s.decoded != nil {
		s.decoded.SetDefault(key, resp)
		w.Header().Set("X-Cache", "MISS")
	}
	writeDecode(w, resp)
}

func writeDecode(w http.ResponseWriter, resp DecodeResponse) {
	status := http.StatusOK
	if resp.Profile == nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// cacheKey identifies a decode input. Decoding is a pure function of the two
// texts, so equal keys always yield equal responses.
func cacheKey(ttaa, ttbb string) string {
	h := sha256.New()
	h.Write([]byte(ttaa))
	h.Write([]byte{0})
	h.Write([]byte(ttbb))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Server) station(w http.ResponseWriter, r *http.Request) (string, bool) {
	station := strings.ToUpper(chi.URLParam(r, "station"))
	if err := s.validate.Var(station, "required,alphanum,len=5"); err != nil {
		writeError(w, http.StatusBadRequest, "station must be 5 alphanumeric characters")
		return "", false
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, storage.ErrNoStore.Error())
		return "", false
	}
	return station, true
}

func (s *Server) handleLatestProfile(w http.ResponseWriter, r *http.Request) {
	station, ok := s.station(w, r)
	if !ok {
		return
	}

	rec, err := s.store.Latest(r.Context(), station)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "No profile found for station")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	station, ok := s.station(w, r)
	if !ok {
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := s.store.List(r.Context(), station, limit)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if records == nil {
		records = []storage.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNoStore) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.log.Error("profile store", "error", err)
	writeError(w, http.StatusInternalServerError, "profile store unavailable")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
