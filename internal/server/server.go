package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/model"
	"github.com/sells-group/port-research/internal/research"
	"github.com/sells-group/port-research/internal/store"
)

// Server exposes the research pipeline over HTTP. Research runs stream
// progress as server-sent events; apply is a plain JSON round trip.
type Server struct {
	runner *research.Runner
	store  store.Store
	router chi.Router
}

// New builds the HTTP server.
func New(runner *research.Runner, st store.Store) *Server {
	s := &Server{runner: runner, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/facilities", func(r chi.Router) {
		r.Get("/", s.handleListFacilities)
		r.Post("/", s.handleCreateFacility)
		r.Get("/{id}", s.handleGetFacility)
		r.Post("/{id}/research", s.handleResearch)
		r.Post("/{id}/research/apply", s.handleApply)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server on the given port.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: research streams stay open for minutes.
	}
	zap.L().Info("server: listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := s.store.ListFacilities(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list facilities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facilities": facilities})
}

func (s *Server) handleCreateFacility(w http.ResponseWriter, r *http.Request) {
	var f model.Facility
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid facility payload")
		return
	}
	if f.Name == "" {
		writeError(w, http.StatusBadRequest, "facility name is required")
		return
	}
	if err := s.store.CreateFacility(r.Context(), &f); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create facility")
		return
	}
	writeJSON(w, http.StatusCreated, &f)
}

func (s *Server) handleGetFacility(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFacility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "facility not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleResearch runs the pipeline and streams events. With ?background=true
// the run survives client disconnection; otherwise closing the stream cancels
// it.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	sink, err := newSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := research.RunOptions{
		Background: r.URL.Query().Get("background") == "true",
	}
	s.runner.Run(r.Context(), chi.URLParam(r, "id"), opts, sink)
}

type applyRequest struct {
	UpdatePayload   model.UpdatePayload `json:"update_payload"`
	ApprovedUpdates []string            `json:"approved_updates"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid apply payload")
		return
	}

	facility, err := research.Apply(r.Context(), s.store, chi.URLParam(r, "id"), req.UpdatePayload, req.ApprovedUpdates)
	if err != nil {
		status := http.StatusInternalServerError
		if re := research.AsError(err); re.Category == research.CategoryValidation {
			status = http.StatusBadRequest
		}
		writeError(w, status, "failed to apply updates")
		return
	}
	writeJSON(w, http.StatusOK, facility)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("server: failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
