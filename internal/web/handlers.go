package web

// handlers.go holds the project and schema endpoints. The upload and
// export endpoints live in handlers_upload.go.

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rissahq/rissa/internal/core"
)

// maxJSONBody caps project and schema request bodies at 1 MiB.
const maxJSONBody = 1 << 20

func projectID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	return id, err == nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.badRequest(w, r, "project name is required")
		return
	}

	project, err := s.service.CreateProject(r.Context(), strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pageOf(projects, skip, limit))
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent, malformed, or negative.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func pageOf(projects []core.Project, skip, limit int) []core.Project {
	if skip >= len(projects) {
		return []core.Project{}
	}
	end := skip + limit
	if end > len(projects) {
		end = len(projects)
	}
	return projects[skip:end]
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}
	project, err := s.service.GetProject(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

type updateProjectRequest struct {
	Description      *string `json:"description"`
	DownloadPassword *string `json:"download_password"`
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}

	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid request body: %v", err)
		return
	}

	project, err := s.service.UpdateProject(r.Context(), id, core.ProjectUpdate{
		Description:      req.Description,
		DownloadPassword: req.DownloadPassword,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}
	if err := s.service.DeleteProject(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}

type createSchemaRequest struct {
	Structure json.RawMessage `json:"structure"`
}

func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}

	var req createSchemaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid request body: %v", err)
		return
	}
	if len(req.Structure) == 0 {
		s.badRequest(w, r, "schema structure is required")
		return
	}

	schema, err := s.service.CreateSchema(r.Context(), id, req.Structure)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, schema)
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}
	schemas, err := s.service.ListSchemas(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, schemas)
}

func (s *Server) handleLatestSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}
	schema, err := s.service.LatestSchema(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, schema)
}
