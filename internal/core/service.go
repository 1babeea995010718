package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// ProfileTimeout bounds background profile generation for one submission.
var ProfileTimeout = 2 * time.Minute

// Profiler generates the descriptive profiling artifact for an accepted
// submission. Generation is best-effort; the intake path never waits on it.
type Profiler interface {
	// ReportURL returns the stable URL the artifact will be served from.
	ReportURL(submissionID int64) string

	// Generate renders and stores the artifact.
	Generate(ctx context.Context, submissionID int64, dataset Dataset) error
}

// SubmitRequest is one upload attempt from a contributing center. The
// dataset has already been parsed by the transport layer.
type SubmitRequest struct {
	ProjectID    int64
	CenterName   string
	UploaderName string
	Filename     string
	SizeBytes    int64
	Dataset      Dataset
}

// Service wires the schema registry, the guard, the validation engine, and
// the submission ledger over a Store.
type Service struct {
	store    Store
	profiler Profiler
	limiter  *UploadLimiter
	logger   *slog.Logger
}

// NewService creates a Service. profiler may be nil to disable profiling.
func NewService(store Store, profiler Profiler, limiter *UploadLimiter, logger *slog.Logger) *Service {
	if limiter == nil {
		limiter = NewUploadLimiter(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, profiler: profiler, limiter: limiter, logger: logger}
}

// Limiter exposes the intake limiter for shutdown draining.
func (s *Service) Limiter() *UploadLimiter { return s.limiter }

// CreateProject registers a new project scope.
func (s *Service) CreateProject(ctx context.Context, name, description string) (Project, error) {
	return s.store.CreateProject(ctx, name, description)
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	return s.store.ListProjects(ctx)
}

// GetProject returns one project with its schema versions.
func (s *Service) GetProject(ctx context.Context, id int64) (Project, error) {
	return s.store.GetProject(ctx, id)
}

// UpdateProject patches the mutable project fields.
func (s *Service) UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (Project, error) {
	return s.store.UpdateProject(ctx, id, upd)
}

// DeleteProject removes a project and its schemas and submissions.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	return s.store.DeleteProject(ctx, id)
}

// CreateSchema validates the structure document and appends it as the
// project's next schema version.
func (s *Service) CreateSchema(ctx context.Context, projectID int64, structure json.RawMessage) (Schema, error) {
	if _, err := ParseStructure(structure); err != nil {
		return Schema{}, err
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return Schema{}, err
	}
	return s.store.CreateSchema(ctx, projectID, structure)
}

// ListSchemas returns a project's schema versions, newest first.
func (s *Service) ListSchemas(ctx context.Context, projectID int64) ([]Schema, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListSchemas(ctx, projectID)
}

// LatestSchema returns the highest schema version for a project.
func (s *Service) LatestSchema(ctx context.Context, projectID int64) (Schema, error) {
	return s.store.LatestSchema(ctx, projectID)
}

// ListSubmissions returns a project's submission records without datasets.
func (s *Service) ListSubmissions(ctx context.Context, projectID int64) ([]Submission, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx, projectID)
}

// Submit runs one upload attempt through the full intake pipeline: schema
// lookup, sensitive-field guard, validation, and the replace-if-exists
// write. Rejected attempts are never persisted; the error carries the
// structure the transport needs (flagged columns or the full report).
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmissionReceipt, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return SubmissionReceipt{}, err
	}
	defer s.limiter.Release()

	if _, err := s.store.GetProject(ctx, req.ProjectID); err != nil {
		return SubmissionReceipt{}, err
	}

	schema, err := s.store.LatestSchema(ctx, req.ProjectID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return SubmissionReceipt{}, Errf(KindPreconditionFailed,
				"no schema configured for this project; ask the PI to define the column rules first")
		}
		return SubmissionReceipt{}, err
	}

	rules, err := ParseStructure(schema.Structure)
	if err != nil {
		return SubmissionReceipt{}, err
	}

	stats := ComputeFileStats(req.Dataset, req.SizeBytes)

	if flagged := ScanSensitive(req.Dataset.Columns); len(flagged) > 0 {
		s.logger.WarnContext(ctx, "upload rejected by sensitive-field guard",
			"project_id", req.ProjectID,
			"center_name", req.CenterName,
			"columns", flagged,
		)
		return SubmissionReceipt{}, SensitiveDataError(flagged)
	}

	report := Validate(req.Dataset, rules)
	if !report.IsValid() {
		s.logger.InfoContext(ctx, "upload failed validation",
			"project_id", req.ProjectID,
			"center_name", req.CenterName,
			"errors", len(report.Errors),
			"warnings", len(report.Warnings),
		)
		return SubmissionReceipt{}, ValidationFailedError(report)
	}

	data := req.Dataset
	stored, err := s.store.ReplaceSubmission(ctx, Submission{
		ProjectID:    req.ProjectID,
		CenterName:   req.CenterName,
		UploaderName: req.UploaderName,
		Filename:     req.Filename,
		UploadDate:   time.Now().UTC(),
		Status:       StatusValidated,
		Report:       report,
		Data:         &data,
	})
	if err != nil {
		return SubmissionReceipt{}, err
	}

	s.logger.InfoContext(ctx, "submission accepted",
		"project_id", req.ProjectID,
		"center_name", req.CenterName,
		"submission_id", stored.ID,
		"rows", report.Stats.Rows,
	)

	receipt := SubmissionReceipt{Submission: stored, FileStats: stats}
	receipt.Data = nil

	if s.profiler != nil {
		receipt.ReportURL = s.profiler.ReportURL(stored.ID)
		go s.generateProfile(stored.ID, req.Dataset)
	}

	return receipt, nil
}

// generateProfile runs in the background after a successful intake. A
// failed profile is logged and otherwise swallowed; the accept path has
// already returned.
func (s *Service) generateProfile(submissionID int64, dataset Dataset) {
	ctx, cancel := context.WithTimeout(context.Background(), ProfileTimeout)
	defer cancel()

	if err := s.profiler.Generate(ctx, submissionID, dataset); err != nil {
		s.logger.Warn("profile generation failed",
			"submission_id", submissionID,
			"error", err,
		)
	}
}

// ExportMerged checks the download password and renders the merged CSV of
// all validated submissions. An empty stored password leaves the export
// open.
func (s *Service) ExportMerged(ctx context.Context, projectID int64, password string) (ExportFile, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return ExportFile{}, err
	}

	if project.DownloadPassword != "" && password != project.DownloadPassword {
		return ExportFile{}, Errf(KindAuthorization, "invalid download password")
	}

	subs, err := s.store.ValidatedSubmissions(ctx, projectID)
	if err != nil {
		return ExportFile{}, err
	}
	if len(subs) == 0 {
		return ExportFile{}, Errf(KindNoData, "no validated data available for download")
	}

	return MergeSubmissions(projectID, subs)
}
