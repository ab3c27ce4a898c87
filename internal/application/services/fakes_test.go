package services

import (
	"context"
	"sync"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
)

// fakeModelClient returns a canned response and remembers the last prompt
type fakeModelClient struct {
	response string
	err      error

	mu         sync.Mutex
	lastPrompt string
	calls      int
}

func (f *fakeModelClient) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrompt = prompt
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// memLockStore is an in-memory LockStore keyed by project
type memLockStore struct {
	mu    sync.Mutex
	locks map[string]*schema.SchemaLock
}

func newMemLockStore() *memLockStore {
	return &memLockStore{locks: make(map[string]*schema.SchemaLock)}
}

func (m *memLockStore) Get(_ context.Context, projectID string) (*schema.SchemaLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[projectID]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m *memLockStore) Insert(_ context.Context, lock *schema.SchemaLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *lock
	m.locks[lock.ProjectID] = &cp
	return nil
}

func (m *memLockStore) UpdateExpiry(_ context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.locks {
		if l.ID == id {
			l.ExpiresAt = expiresAt
		}
	}
	return nil
}

func (m *memLockStore) DeleteOwned(_ context.Context, projectID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[projectID]; ok && l.UserID == userID {
		delete(m.locks, projectID)
	}
	return nil
}

func (m *memLockStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for projectID, l := range m.locks {
		if !l.ExpiresAt.After(before) {
			delete(m.locks, projectID)
			n++
		}
	}
	return n, nil
}

// memTraceStore collects traces in memory
type memTraceStore struct {
	mu     sync.Mutex
	traces []*schema.DecisionTrace
	err    error
}

func (m *memTraceStore) Insert(_ context.Context, trace *schema.DecisionTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.traces = append(m.traces, trace)
	return nil
}

func (m *memTraceStore) ListByProject(_ context.Context, projectID string) ([]*schema.DecisionTrace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.DecisionTrace
	for i := len(m.traces) - 1; i >= 0; i-- {
		if m.traces[i].ProjectID == projectID {
			out = append(out, m.traces[i])
		}
	}
	return out, nil
}

func (m *memTraceStore) CountByUserSince(_ context.Context, userID, kind string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.traces {
		if t.UserID == userID && t.Kind == kind && !t.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// memVersionStore keeps version rows in insertion order
type memVersionStore struct {
	mu      sync.Mutex
	records []*schema.SchemaVersionRecord
}

func (m *memVersionStore) Activate(_ context.Context, rec *schema.SchemaVersionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ProjectID == rec.ProjectID {
			r.IsActive = false
		}
	}
	cp := *rec
	cp.IsActive = true
	m.records = append(m.records, &cp)
	return nil
}

func (m *memVersionStore) GetActive(_ context.Context, projectID string) (*schema.SchemaVersionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ProjectID == projectID && m.records[i].IsActive {
			cp := *m.records[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memVersionStore) GetByVersion(_ context.Context, projectID, version string) (*schema.SchemaVersionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ProjectID == projectID && m.records[i].SchemaVersion == version {
			cp := *m.records[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memVersionStore) VersionExists(_ context.Context, projectID, version string) (bool, error) {
	rec, _ := m.GetByVersion(context.Background(), projectID, version)
	return rec != nil, nil
}

func (m *memVersionStore) List(_ context.Context, projectID string) ([]*schema.SchemaVersionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schema.SchemaVersionRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ProjectID == projectID {
			cp := *m.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeProvisioner records what it was asked to provision. Reconcile mirrors
// the real additive diff: schemas collects the new-table sub-schemas,
// columnsAdded the column additions to shared tables.
type fakeProvisioner struct {
	mu           sync.Mutex
	schemas      []*schema.Schema
	columnsAdded []string
	err          error
}

func (f *fakeProvisioner) Provision(_ context.Context, _ string, s *schema.Schema) (*ProvisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.schemas = append(f.schemas, s)
	var created []string
	for _, t := range s.Tables {
		created = append(created, "ws_test_"+t.Name)
	}
	return &ProvisionResult{TablesCreated: created}, nil
}

func (f *fakeProvisioner) Reconcile(_ context.Context, _ string, live, next *schema.Schema) (*ProvisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	res := &ProvisionResult{}
	sub := &schema.Schema{Version: next.Version}
	for _, t := range next.Tables {
		prev := live.Table(t.Name)
		if prev == nil {
			sub.Tables = append(sub.Tables, t)
			res.TablesCreated = append(res.TablesCreated, "ws_test_"+t.Name)
			continue
		}
		for _, col := range t.Columns {
			if prev.Column(col.Name) == nil {
				res.ColumnsAdded = append(res.ColumnsAdded, "ws_test_"+t.Name+"."+col.Name)
			}
		}
	}
	if len(sub.Tables) > 0 {
		f.schemas = append(f.schemas, sub)
	}
	f.columnsAdded = append(f.columnsAdded, res.ColumnsAdded...)
	return res, nil
}

// auditedColumns are the mandatory columns every generated table carries
func auditedColumns() []schema.ColumnDefinition {
	return []schema.ColumnDefinition{
		{Name: "user_id", Type: schema.TypeUUID},
		{Name: "created_at", Type: schema.TypeTimestamptz},
		{Name: "updated_at", Type: schema.TypeTimestamptz},
	}
}

// testTable builds a minimal valid table with the audit columns appended
func testTable(name string, extra ...schema.ColumnDefinition) schema.TableDefinition {
	return schema.TableDefinition{
		Name:    name,
		Columns: append(extra, auditedColumns()...),
	}
}
