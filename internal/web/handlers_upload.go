package web

// handlers_upload.go holds the submission intake and merged export
// endpoints, the two data-bearing operations of the API.

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rissahq/rissa/internal/core"
	"github.com/rissahq/rissa/internal/logging"
)

// handleSubmit accepts one multipart upload from a contributing center:
// form fields center_name (required) and uploader_name, plus the file.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		s.badRequest(w, r, "could not parse the upload form: %v", err)
		return
	}

	centerName := strings.TrimSpace(r.FormValue("center_name"))
	if centerName == "" {
		s.badRequest(w, r, "center_name is required")
		return
	}
	uploaderName := strings.TrimSpace(r.FormValue("uploader_name"))

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, r, "a file upload is required")
		return
	}
	defer file.Close()

	if !SupportedUpload(header.Filename) {
		s.badRequest(w, r, "unsupported file type: only .csv and .xlsx uploads are accepted")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.badRequest(w, r, "could not read the uploaded file: %v", err)
		return
	}

	dataset, err := ParseDataset(header.Filename, content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(),
		"project_id", id,
		"center_name", centerName,
		"filename", header.Filename,
	).Info("upload received", "bytes", len(content), "rows", dataset.RowCount())

	receipt, err := s.service.Submit(r.Context(), core.SubmitRequest{
		ProjectID:    id,
		CenterName:   centerName,
		UploaderName: uploaderName,
		Filename:     header.Filename,
		SizeBytes:    int64(len(content)),
		Dataset:      dataset,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}
	subs, err := s.service.ListSubmissions(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

type downloadRequest struct {
	Password string `json:"password"`
}

// handleDownload streams the merged CSV of all validated submissions. The
// password arrives as a form field (the web client posts FormData); a JSON
// body is accepted as well.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		s.badRequest(w, r, "invalid project id")
		return
	}

	var password string
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var req downloadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.badRequest(w, r, "invalid request body: %v", err)
			return
		}
		password = req.Password
	case r.ContentLength > 0:
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		password = r.FormValue("password")
	}

	export, err := s.service.ExportMerged(r.Context(), id, password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Content)
}
