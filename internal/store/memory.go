package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rissahq/rissa/internal/core"
)

// Memory is a mutex-guarded in-memory core.Store. It backs handler and
// service tests and enforces the same invariants as the Postgres store.
type Memory struct {
	mu          sync.Mutex
	projects    map[int64]core.Project
	schemas     map[int64][]core.Schema
	submissions map[int64][]core.Submission
	nextID      int64
}

var _ core.Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects:    make(map[int64]core.Project),
		schemas:     make(map[int64][]core.Schema),
		submissions: make(map[int64][]core.Submission),
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) CreateProject(_ context.Context, name, description string) (core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.projects {
		if p.Name == name {
			return core.Project{}, core.Errf(core.KindConflict, "project name already exists: %s", name)
		}
	}

	p := core.Project{
		ID:          m.id(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *Memory) ListProjects(context.Context) ([]core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) GetProject(_ context.Context, id int64) (core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return core.Project{}, core.Errf(core.KindNotFound, "project not found")
	}
	p.Schemas = m.schemasDesc(id)
	return p, nil
}

func (m *Memory) UpdateProject(_ context.Context, id int64, upd core.ProjectUpdate) (core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return core.Project{}, core.Errf(core.KindNotFound, "project not found")
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.DownloadPassword != nil {
		p.DownloadPassword = *upd.DownloadPassword
	}
	m.projects[id] = p
	return p, nil
}

func (m *Memory) DeleteProject(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return core.Errf(core.KindNotFound, "project not found")
	}
	delete(m.submissions, id)
	delete(m.schemas, id)
	delete(m.projects, id)
	return nil
}

func (m *Memory) CreateSchema(_ context.Context, projectID int64, structure json.RawMessage) (core.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[projectID]; !ok {
		return core.Schema{}, core.Errf(core.KindNotFound, "project not found")
	}

	version := 0
	for _, sc := range m.schemas[projectID] {
		if sc.Version > version {
			version = sc.Version
		}
	}

	// Copy the raw document so callers cannot mutate stored state.
	stored := make(json.RawMessage, len(structure))
	copy(stored, structure)

	sc := core.Schema{
		ID:        m.id(),
		ProjectID: projectID,
		Version:   version + 1,
		Structure: stored,
		CreatedAt: time.Now().UTC(),
	}
	m.schemas[projectID] = append(m.schemas[projectID], sc)
	return sc, nil
}

func (m *Memory) ListSchemas(_ context.Context, projectID int64) ([]core.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schemasDesc(projectID), nil
}

// schemasDesc returns the project's schemas newest first. Caller holds mu.
func (m *Memory) schemasDesc(projectID int64) []core.Schema {
	list := m.schemas[projectID]
	out := make([]core.Schema, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}

func (m *Memory) LatestSchema(_ context.Context, projectID int64) (core.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.schemasDesc(projectID)
	if len(list) == 0 {
		return core.Schema{}, core.Errf(core.KindNotFound, "no schema configured for project")
	}
	return list[0], nil
}

func (m *Memory) ReplaceSubmission(_ context.Context, sub core.Submission) (core.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[sub.ProjectID]; !ok {
		return core.Submission{}, core.Errf(core.KindNotFound, "project not found")
	}

	list := m.submissions[sub.ProjectID]
	kept := make([]core.Submission, 0, len(list))
	for _, existing := range list {
		if existing.CenterName != sub.CenterName {
			kept = append(kept, existing)
		}
	}

	sub.ID = m.id()
	if sub.UploadDate.IsZero() {
		sub.UploadDate = time.Now().UTC()
	}
	m.submissions[sub.ProjectID] = append(kept, sub)
	return sub, nil
}

func (m *Memory) ListSubmissions(_ context.Context, projectID int64) ([]core.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.submissions[projectID]
	out := make([]core.Submission, len(list))
	copy(out, list)
	for i := range out {
		out[i].Data = nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) ValidatedSubmissions(_ context.Context, projectID int64) ([]core.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.Submission
	for _, sub := range m.submissions[projectID] {
		if sub.Status == core.StatusValidated {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
