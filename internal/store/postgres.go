// Package store provides the persistence implementations behind core.Store:
// a Postgres store for production and an in-memory store for tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rissahq/rissa/internal/core"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// schemaVersionRetries bounds the insert retry loop when two schema
// creations race for the same version number.
const schemaVersionRetries = 3

// Postgres implements core.Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Postgres)(nil)

// NewPostgres wraps an existing pool. The caller owns the pool's lifecycle.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) CreateProject(ctx context.Context, name, description string) (core.Project, error) {
	var proj core.Project
	err := p.pool.QueryRow(ctx,
		`INSERT INTO projects (name, description)
		 VALUES ($1, $2)
		 RETURNING id, name, description, download_password, created_at`,
		name, description,
	).Scan(&proj.ID, &proj.Name, &proj.Description, &proj.DownloadPassword, &proj.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Project{}, core.Errf(core.KindConflict, "project name already exists: %s", name)
		}
		return core.Project{}, core.WrapPersistence("create project", err)
	}
	return proj, nil
}

func (p *Postgres) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, description, download_password, created_at
		 FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, core.WrapPersistence("list projects", err)
	}
	defer rows.Close()

	projects := make([]core.Project, 0)
	for rows.Next() {
		var proj core.Project
		if err := rows.Scan(&proj.ID, &proj.Name, &proj.Description, &proj.DownloadPassword, &proj.CreatedAt); err != nil {
			return nil, core.WrapPersistence("scan project", err)
		}
		projects = append(projects, proj)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapPersistence("list projects", err)
	}
	return projects, nil
}

func (p *Postgres) GetProject(ctx context.Context, id int64) (core.Project, error) {
	var proj core.Project
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, description, download_password, created_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&proj.ID, &proj.Name, &proj.Description, &proj.DownloadPassword, &proj.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Project{}, core.Errf(core.KindNotFound, "project not found")
	}
	if err != nil {
		return core.Project{}, core.WrapPersistence("get project", err)
	}

	schemas, err := p.ListSchemas(ctx, id)
	if err != nil {
		return core.Project{}, err
	}
	proj.Schemas = schemas
	return proj, nil
}

func (p *Postgres) UpdateProject(ctx context.Context, id int64, upd core.ProjectUpdate) (core.Project, error) {
	var proj core.Project
	err := p.pool.QueryRow(ctx,
		`UPDATE projects
		 SET description = COALESCE($2, description),
		     download_password = COALESCE($3, download_password)
		 WHERE id = $1
		 RETURNING id, name, description, download_password, created_at`,
		id, upd.Description, upd.DownloadPassword,
	).Scan(&proj.ID, &proj.Name, &proj.Description, &proj.DownloadPassword, &proj.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Project{}, core.Errf(core.KindNotFound, "project not found")
	}
	if err != nil {
		return core.Project{}, core.WrapPersistence("update project", err)
	}
	return proj, nil
}

// DeleteProject removes submissions, then schemas, then the project row,
// all in one transaction.
func (p *Postgres) DeleteProject(ctx context.Context, id int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.WrapPersistence("begin delete project", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM submissions WHERE project_id = $1`, id); err != nil {
		return core.WrapPersistence("delete submissions", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM schemas WHERE project_id = $1`, id); err != nil {
		return core.WrapPersistence("delete schemas", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return core.WrapPersistence("delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Errf(core.KindNotFound, "project not found")
	}

	if err := tx.Commit(ctx); err != nil {
		return core.WrapPersistence("commit delete project", err)
	}
	return nil
}

// CreateSchema assigns max(version)+1 and retries on a version collision
// with a concurrent writer.
func (p *Postgres) CreateSchema(ctx context.Context, projectID int64, structure json.RawMessage) (core.Schema, error) {
	var lastErr error
	for attempt := 0; attempt < schemaVersionRetries; attempt++ {
		var sc core.Schema
		err := p.pool.QueryRow(ctx,
			`INSERT INTO schemas (project_id, version, structure)
			 SELECT $1, COALESCE(MAX(version), 0) + 1, $2 FROM schemas WHERE project_id = $1
			 RETURNING id, project_id, version, structure, created_at`,
			projectID, structure,
		).Scan(&sc.ID, &sc.ProjectID, &sc.Version, &sc.Structure, &sc.CreatedAt)
		if err == nil {
			return sc, nil
		}
		if isUniqueViolation(err) {
			lastErr = err
			continue
		}
		return core.Schema{}, core.WrapPersistence("create schema", err)
	}
	return core.Schema{}, core.WrapPersistence(
		fmt.Sprintf("create schema: version contention after %d attempts", schemaVersionRetries), lastErr)
}

func (p *Postgres) ListSchemas(ctx context.Context, projectID int64) ([]core.Schema, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, version, structure, created_at
		 FROM schemas WHERE project_id = $1 ORDER BY version DESC`, projectID)
	if err != nil {
		return nil, core.WrapPersistence("list schemas", err)
	}
	defer rows.Close()

	schemas := make([]core.Schema, 0)
	for rows.Next() {
		var sc core.Schema
		if err := rows.Scan(&sc.ID, &sc.ProjectID, &sc.Version, &sc.Structure, &sc.CreatedAt); err != nil {
			return nil, core.WrapPersistence("scan schema", err)
		}
		schemas = append(schemas, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapPersistence("list schemas", err)
	}
	return schemas, nil
}

func (p *Postgres) LatestSchema(ctx context.Context, projectID int64) (core.Schema, error) {
	var sc core.Schema
	err := p.pool.QueryRow(ctx,
		`SELECT id, project_id, version, structure, created_at
		 FROM schemas WHERE project_id = $1 ORDER BY version DESC LIMIT 1`, projectID,
	).Scan(&sc.ID, &sc.ProjectID, &sc.Version, &sc.Structure, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Schema{}, core.Errf(core.KindNotFound, "no schema configured for project")
	}
	if err != nil {
		return core.Schema{}, core.WrapPersistence("latest schema", err)
	}
	return sc, nil
}

// ReplaceSubmission deletes the center's prior submission and inserts the
// new one in a single transaction, so a failure leaves the old row intact.
func (p *Postgres) ReplaceSubmission(ctx context.Context, sub core.Submission) (core.Submission, error) {
	reportJSON, err := json.Marshal(sub.Report)
	if err != nil {
		return core.Submission{}, core.WrapPersistence("encode validation report", err)
	}
	dataJSON, err := json.Marshal(sub.Data)
	if err != nil {
		return core.Submission{}, core.WrapPersistence("encode dataset", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.Submission{}, core.WrapPersistence("begin replace submission", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM submissions WHERE project_id = $1 AND center_name = $2`,
		sub.ProjectID, sub.CenterName,
	); err != nil {
		return core.Submission{}, core.WrapPersistence("delete prior submission", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO submissions (project_id, center_name, uploader_name, filename, upload_date, status, validation_report, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, upload_date`,
		sub.ProjectID, sub.CenterName, sub.UploaderName, sub.Filename, sub.UploadDate, sub.Status, reportJSON, dataJSON,
	).Scan(&sub.ID, &sub.UploadDate)
	if err != nil {
		return core.Submission{}, core.WrapPersistence("insert submission", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Submission{}, core.WrapPersistence("commit replace submission", err)
	}
	return sub, nil
}

func (p *Postgres) ListSubmissions(ctx context.Context, projectID int64) ([]core.Submission, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, center_name, uploader_name, filename, upload_date, status, validation_report
		 FROM submissions WHERE project_id = $1 ORDER BY upload_date DESC, id DESC`, projectID)
	if err != nil {
		return nil, core.WrapPersistence("list submissions", err)
	}
	defer rows.Close()

	subs := make([]core.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows, false)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapPersistence("list submissions", err)
	}
	return subs, nil
}

func (p *Postgres) ValidatedSubmissions(ctx context.Context, projectID int64) ([]core.Submission, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, project_id, center_name, uploader_name, filename, upload_date, status, validation_report, data
		 FROM submissions
		 WHERE project_id = $1 AND status = $2
		 ORDER BY upload_date ASC, id ASC`,
		projectID, core.StatusValidated)
	if err != nil {
		return nil, core.WrapPersistence("list validated submissions", err)
	}
	defer rows.Close()

	subs := make([]core.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows, true)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapPersistence("list validated submissions", err)
	}
	return subs, nil
}

func scanSubmission(rows pgx.Rows, withData bool) (core.Submission, error) {
	var sub core.Submission
	var reportJSON []byte
	var dataJSON []byte

	dest := []any{&sub.ID, &sub.ProjectID, &sub.CenterName, &sub.UploaderName, &sub.Filename, &sub.UploadDate, &sub.Status, &reportJSON}
	if withData {
		dest = append(dest, &dataJSON)
	}
	if err := rows.Scan(dest...); err != nil {
		return core.Submission{}, core.WrapPersistence("scan submission", err)
	}

	if err := json.Unmarshal(reportJSON, &sub.Report); err != nil {
		return core.Submission{}, core.WrapPersistence("decode validation report", err)
	}
	if withData && len(dataJSON) > 0 {
		var data core.Dataset
		if err := json.Unmarshal(dataJSON, &data); err != nil {
			return core.Submission{}, core.WrapPersistence("decode dataset", err)
		}
		sub.Data = &data
	}
	return sub, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
