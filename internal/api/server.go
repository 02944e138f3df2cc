package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/protocorpus/internal/config"
	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/pipeline"
	"github.com/dgallion1/protocorpus/internal/search"
	"github.com/dgallion1/protocorpus/internal/tei"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API over a protocol corpus.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	indexer      *corpus.Indexer
	walker       *tei.Walker
	search       *search.Index
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. idx may be nil, in
// which case search requests are rejected.
func NewServer(orch *pipeline.Orchestrator, idx *search.Index, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		indexer:      corpus.NewIndexer(corpus.WithExtension(cfg.DocumentExt)),
		walker:       tei.NewWalker(log, tei.WithNamespace(cfg.TEINamespace)),
		search:       idx,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/metadata", s.handleMetadata)
	r.Get("/api/protocols", s.handleListProtocols)
	r.Get("/api/protocols/summary", s.handleSummary)
	r.Get("/api/protocols/{protocolID}/elements", s.handleElements)
	r.Get("/api/search", s.handleSearch)

	// Runs rewrite corpus files, so they are only served with a key.
	if s.cfg.APIKey != "" {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

			r.Post("/api/runs/remove-attribute", s.handleRemoveAttribute)
			r.Post("/api/runs/check", s.handleCheck)
			r.Get("/api/runs/{runID}", s.handleRunStatus)
		})
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type statsResponse struct {
	CorpusRoot   string  `json:"corpus_root"`
	DocumentExt  string  `json:"document_ext"`
	TEINamespace string  `json:"tei_namespace"`
	QueueDepth   int     `json:"queue_depth"`
	Utterances   *uint64 `json:"indexed_utterances,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		CorpusRoot:   s.cfg.CorpusRoot,
		DocumentExt:  s.indexer.Extension(),
		TEINamespace: s.walker.Namespace(),
		QueueDepth:   s.orchestrator.QueueDepth(),
	}
	if s.search != nil {
		n, err := s.search.Count()
		if err != nil {
			s.log.Error("count indexed utterances", "error", err)
			jsonError(w, "failed to read search index", http.StatusInternalServerError)
			return
		}
		resp.Utterances = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
