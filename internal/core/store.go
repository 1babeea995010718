package core

import (
	"context"
	"encoding/json"
)

// ProjectUpdate carries the mutable project fields. Nil means leave
// unchanged; setting DownloadPassword to an empty string opens the export.
type ProjectUpdate struct {
	Description      *string
	DownloadPassword *string
}

// Store is the persistence boundary. Implementations enforce the entity
// invariants (unique project name, append-only schema versions, one
// submission per project and center) and translate their backend's failure
// modes into the Kind taxonomy: KindNotFound for absent rows, KindConflict
// for uniqueness violations, KindPersistence for everything else. Writes
// are atomic; a failed write leaves the stored state unchanged.
type Store interface {
	CreateProject(ctx context.Context, name, description string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	// GetProject loads one project including its schema versions, newest
	// first.
	GetProject(ctx context.Context, id int64) (Project, error)
	UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (Project, error)

	// DeleteProject removes the project and everything under it.
	DeleteProject(ctx context.Context, id int64) error

	// CreateSchema appends the next version in the project's lineage. The
	// structure has already been validated by the registry.
	CreateSchema(ctx context.Context, projectID int64, structure json.RawMessage) (Schema, error)
	ListSchemas(ctx context.Context, projectID int64) ([]Schema, error)
	LatestSchema(ctx context.Context, projectID int64) (Schema, error)

	// ReplaceSubmission deletes any existing submission for the same
	// (project, center) pair and inserts sub in one transaction.
	ReplaceSubmission(ctx context.Context, sub Submission) (Submission, error)

	// ListSubmissions returns the project's submissions without their
	// datasets.
	ListSubmissions(ctx context.Context, projectID int64) ([]Submission, error)

	// ValidatedSubmissions returns the validated submissions with datasets
	// loaded, ordered by upload date.
	ValidatedSubmissions(ctx context.Context, projectID int64) ([]Submission, error)
}
