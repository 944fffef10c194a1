// api/server.go

// HTTP API surface over the gossip engine: broadcast a quote, list
// stored quotes by tag/destpub/amount range, and dump the engine's
// perf counters. Uses Gorilla Mux for routing, CORS + logging
// middleware, and a thin JSON envelope, in the shape of the teacher's
// account/block REST server.

package api

import (
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/komodex/dex-gossip/dex"
)

// Server represents the HTTP API server.
type Server struct {
	engine *dex.Engine
	router *mux.Router
	server *http.Server
	addr   string
}

// NewServer creates a new API server bound to an already-running
// gossip engine.
func NewServer(engine *dex.Engine, addr string, enableCORS bool) *Server {
	s := &Server{
		engine: engine,
		addr:   addr,
	}
	s.setupRoutes(enableCORS)
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(enableCORS bool) {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api/v1/dex").Subrouter()
	api.HandleFunc("/broadcast", s.postBroadcast).Methods("POST")
	api.HandleFunc("/list", s.getList).Methods("GET")
	api.HandleFunc("/stats", s.getStats).Methods("GET")
	api.HandleFunc("/health", s.getHealth).Methods("GET")

	if enableCORS {
		c := cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		})
		s.router.Use(c.Handler)
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.jsonMiddleware)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("dex api: server starting on %s", s.addr)
	log.Printf("dex api: health check: http://localhost%s/api/v1/dex/health", s.addr)

	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// broadcastRequest is the body of POST /api/v1/dex/broadcast.
type broadcastRequest struct {
	Hex      string `json:"hex"`
	Priority int    `json:"priority"`
	TagA     string `json:"tagA"`
	TagB     string `json:"tagB"`
	DestPub  string `json:"destpub"`
	VolA     string `json:"volA"`
	VolB     string `json:"volB"`
}

func (s *Server) postBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	now := uint32(time.Now().Unix())
	n, err := s.engine.Broadcast(now, req.Priority, req.Hex, req.TagA, req.TagB, req.DestPub, req.VolA, req.VolB)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, map[string]interface{}{"bytes_sent": n})
}

func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := dex.ListQuery{
		StopAtID:    parseUint32(q.Get("stopat")),
		MinPriority: parseInt(q.Get("minpriority")),
		MinA:        parseUint64(q.Get("minA")),
		MaxA:        parseUint64(q.Get("maxA")),
		MinB:        parseUint64(q.Get("minB")),
		MaxB:        parseUint64(q.Get("maxB")),
	}
	if v := q.Get("tagA"); v != "" {
		query.TagA = []byte(v)
	}
	if v := q.Get("tagB"); v != "" {
		query.TagB = []byte(v)
	}
	if v := q.Get("destpub"); v != "" {
		if raw, err := hex.DecodeString(v); err == nil {
			query.DestPub = raw
		}
	}

	matches := s.engine.List(query)
	s.writeJSON(w, map[string]interface{}{
		"matches": matches,
		"tagA":    q.Get("tagA"),
		"tagB":    q.Get("tagB"),
		"destpub": q.Get("destpub"),
		"n":       len(matches),
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Stats())
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func parseInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseUint32(s string) uint32 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

func parseUint64(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("dex api: error encoding JSON: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	})
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
