package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zsiec/avwrap/internal/registry"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/version"
)

type engineInfo struct {
	Name    string   `json:"name"`
	Entries []string `json:"entries"`
}

type enginesResponse struct {
	Codec  []engineInfo `json:"codec"`
	Format []engineInfo `json:"format"`
}

type jobsResponse struct {
	Jobs  []*registry.Job `json:"jobs"`
	Count int             `json:"count"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

// handleEngines lists every registered engine with the codecs or containers
// it handles.
func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	resp := enginesResponse{Codec: []engineInfo{}, Format: []engineInfo{}}
	for _, name := range engine.Codecs() {
		ce, err := engine.Codec(name)
		if err != nil {
			continue
		}
		resp.Codec = append(resp.Codec, engineInfo{Name: name, Entries: ce.Codecs()})
	}
	for _, name := range engine.Formats() {
		fe, err := engine.Format(name)
		if err != nil {
			continue
		}
		resp.Format = append(resp.Format, engineInfo{Name: name, Entries: fe.Formats()})
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if string(j.Status) == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	s.writeJSON(w, r, http.StatusOK, jobsResponse{Jobs: jobs, Count: len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
