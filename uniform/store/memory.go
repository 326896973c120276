/*
Package store provides an in-memory implementation of the uniform engine's
persistence interfaces, used by tests and local development.

FAILURE INJECTION:
  Tests exercise the retry and dual-write paths through injection hooks:
    FailNextConflicts(n)     next n WithTx calls fail with ErrTransactionConflict
    FailNextSchoolSaves(n)   next n SaveSchool calls fail
    FailNextStudentDeletes(n) next n DeleteStudent calls fail

COPY SEMANTICS:
  Reads return deep copies so callers can never mutate stored state without
  going through a Save.
*/
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kitroom/uniform-engine/uniform"
)

var errInjected = errors.New("injected store failure")

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	schools        map[uniform.SchoolID]uniform.School
	students       map[uniform.StudentID]uniform.Student
	batches        map[uniform.BatchID]uniform.Batch
	schoolReports  map[uniform.SchoolID]uniform.SchoolReport
	studentReports map[uniform.SchoolID]map[uniform.StudentID]uniform.StudentReport

	failConflicts      int
	failSchoolSaves    int
	failStudentDeletes int
}

func NewMemory() *Memory {
	return &Memory{
		schools:        make(map[uniform.SchoolID]uniform.School),
		students:       make(map[uniform.StudentID]uniform.Student),
		batches:        make(map[uniform.BatchID]uniform.Batch),
		schoolReports:  make(map[uniform.SchoolID]uniform.SchoolReport),
		studentReports: make(map[uniform.SchoolID]map[uniform.StudentID]uniform.StudentReport),
	}
}

// =============================================================================
// FAILURE INJECTION (tests)
// =============================================================================

func (m *Memory) FailNextConflicts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConflicts = n
}

func (m *Memory) FailNextSchoolSaves(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSchoolSaves = n
}

func (m *Memory) FailNextStudentDeletes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStudentDeletes = n
}

// =============================================================================
// SCHOOL STORE
// =============================================================================

func (m *Memory) School(_ context.Context, id uniform.SchoolID) (*uniform.School, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schools[id]
	if !ok {
		return nil, uniform.ErrSchoolNotFound
	}
	c := copySchool(s)
	return &c, nil
}

func (m *Memory) Schools(_ context.Context) ([]uniform.School, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]uniform.School, 0, len(m.schools))
	for _, s := range m.schools {
		out = append(out, copySchool(s))
	}
	return out, nil
}

func (m *Memory) SaveSchool(_ context.Context, school uniform.School) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSchoolSaves > 0 {
		m.failSchoolSaves--
		return errInjected
	}
	m.schools[school.ID] = copySchool(school)
	return nil
}

func (m *Memory) DeleteSchool(_ context.Context, id uniform.SchoolID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schools, id)
	return nil
}

// =============================================================================
// STUDENT STORE
// =============================================================================

func (m *Memory) Student(_ context.Context, id uniform.StudentID) (*uniform.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.students[id]
	if !ok {
		return nil, uniform.ErrStudentNotFound
	}
	c := copyStudent(s)
	return &c, nil
}

func (m *Memory) StudentsBySchool(_ context.Context, schoolID uniform.SchoolID) ([]uniform.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []uniform.Student
	for _, s := range m.students {
		if s.SchoolID == schoolID {
			out = append(out, copyStudent(s))
		}
	}
	// Deterministic order: map iteration would reshuffle rosters run to run.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) AddStudent(_ context.Context, student uniform.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.ID] = copyStudent(student)
	return nil
}

func (m *Memory) DeleteStudent(_ context.Context, id uniform.StudentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failStudentDeletes > 0 {
		m.failStudentDeletes--
		return errInjected
	}
	delete(m.students, id)
	return nil
}

func (m *Memory) AppendLog(_ context.Context, id uniform.StudentID, entry uniform.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.students[id]
	if !ok {
		return uniform.ErrStudentNotFound
	}
	s.UniformLog = append(s.UniformLog, entry)
	m.students[id] = s
	return nil
}

func (m *Memory) SaveDistributions(_ context.Context, id uniform.StudentID, dist map[string]uniform.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.students[id]
	if !ok {
		return uniform.ErrStudentNotFound
	}
	s.UniformDistribution = copyDistributions(dist)
	m.students[id] = s
	return nil
}

// =============================================================================
// BATCH STORE
// =============================================================================

func (m *Memory) Batch(_ context.Context, id uniform.BatchID) (*uniform.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[id]
	if !ok {
		return nil, uniform.ErrBatchNotFound
	}
	c := copyBatch(b)
	return &c, nil
}

func (m *Memory) Batches(_ context.Context) ([]uniform.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]uniform.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, copyBatch(b))
	}
	return out, nil
}

func (m *Memory) BatchesForUniform(_ context.Context, uniformID uniform.UniformID) ([]uniform.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batchesForUniformLocked(uniformID), nil
}

func (m *Memory) batchesForUniformLocked(uniformID uniform.UniformID) []uniform.Batch {
	var out []uniform.Batch
	for _, b := range m.batches {
		if b.UniformID == uniformID {
			out = append(out, copyBatch(b))
		}
	}
	return out
}

func (m *Memory) SaveBatch(_ context.Context, batch uniform.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = copyBatch(batch)
	return nil
}

func (m *Memory) DeleteBatch(_ context.Context, id uniform.BatchID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, id)
	return nil
}

// WithTx executes fn under the store lock, simulated with snapshot +
// rollback on error. Injected conflicts fire before fn runs, modelling a
// transaction that lost the race.
func (m *Memory) WithTx(ctx context.Context, fn func(tx uniform.BatchTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failConflicts > 0 {
		m.failConflicts--
		return uniform.ErrTransactionConflict
	}

	snapshot := make(map[uniform.BatchID]uniform.Batch, len(m.batches))
	for id, b := range m.batches {
		snapshot[id] = copyBatch(b)
	}

	if err := fn(&txView{parent: m}); err != nil {
		m.batches = snapshot
		return err
	}
	return nil
}

type txView struct {
	parent *Memory
}

func (t *txView) BatchesForUniform(_ context.Context, uniformID uniform.UniformID) ([]uniform.Batch, error) {
	return t.parent.batchesForUniformLocked(uniformID), nil
}

func (t *txView) SaveBatch(_ context.Context, batch uniform.Batch) error {
	t.parent.batches[batch.ID] = copyBatch(batch)
	return nil
}

// =============================================================================
// REPORT STORE
// =============================================================================

func (m *Memory) SchoolReport(_ context.Context, schoolID uniform.SchoolID) (*uniform.SchoolReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.schoolReports[schoolID]
	if !ok {
		return nil, nil
	}
	c := copySchoolReport(r)
	return &c, nil
}

func (m *Memory) StudentReport(_ context.Context, schoolID uniform.SchoolID, studentID uniform.StudentID) (*uniform.StudentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.studentReports[schoolID][studentID]
	if !ok {
		return nil, nil
	}
	c := copyStudentReport(r)
	return &c, nil
}

func (m *Memory) StudentReports(_ context.Context, schoolID uniform.SchoolID) ([]uniform.StudentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []uniform.StudentReport
	for _, r := range m.studentReports[schoolID] {
		out = append(out, copyStudentReport(r))
	}
	return out, nil
}

func (m *Memory) SaveSchoolReport(_ context.Context, report uniform.SchoolReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schoolReports[report.SchoolID] = copySchoolReport(report)
	return nil
}

func (m *Memory) SaveStudentReport(_ context.Context, report uniform.StudentReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStudent, ok := m.studentReports[report.SchoolID]
	if !ok {
		byStudent = make(map[uniform.StudentID]uniform.StudentReport)
		m.studentReports[report.SchoolID] = byStudent
	}
	byStudent[report.StudentID] = copyStudentReport(report)
	return nil
}

func (m *Memory) DeleteStudentReport(_ context.Context, schoolID uniform.SchoolID, studentID uniform.StudentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.studentReports[schoolID], studentID)
	return nil
}

func (m *Memory) DeleteSchoolReport(_ context.Context, schoolID uniform.SchoolID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schoolReports, schoolID)
	return nil
}

// =============================================================================
// DEEP COPIES
// =============================================================================

func copySchool(s uniform.School) uniform.School {
	s.UniformPolicy = append([]uniform.PolicyEntry(nil), s.UniformPolicy...)
	s.Roster = append([]uniform.RosterEntry(nil), s.Roster...)
	return s
}

func copyStudent(s uniform.Student) uniform.Student {
	s.UniformLog = append([]uniform.LogEntry(nil), s.UniformLog...)
	s.UniformDistribution = copyDistributions(s.UniformDistribution)
	return s
}

func copyDistributions(dist map[string]uniform.Distribution) map[string]uniform.Distribution {
	if dist == nil {
		return nil
	}
	out := make(map[string]uniform.Distribution, len(dist))
	for k, d := range dist {
		d.Lines = append([]uniform.DistributionLine(nil), d.Lines...)
		out[k] = d
	}
	return out
}

func copyBatch(b uniform.Batch) uniform.Batch {
	items := make([]uniform.Variant, len(b.Items))
	for i, v := range b.Items {
		sizes := make([]uniform.SizeStock, len(v.Sizes))
		for j, s := range v.Sizes {
			if s.DepletedAt != nil {
				at := *s.DepletedAt
				s.DepletedAt = &at
			}
			sizes[j] = s
		}
		v.Sizes = sizes
		items[i] = v
	}
	b.Items = items
	return b
}

func copySchoolReport(r uniform.SchoolReport) uniform.SchoolReport {
	r.UniformDeficits = append([]uniform.UniformDeficit(nil), r.UniformDeficits...)
	for i := range r.UniformDeficits {
		r.UniformDeficits[i].StudentsAffected = append([]uniform.StudentDeficit(nil), r.UniformDeficits[i].StudentsAffected...)
	}
	r.SizeRequests = append([]uniform.SizeRequest(nil), r.SizeRequests...)
	for i := range r.SizeRequests {
		r.SizeRequests[i].Students = append([]uniform.SizeRequester(nil), r.SizeRequests[i].Students...)
	}
	return r
}

func copyStudentReport(r uniform.StudentReport) uniform.StudentReport {
	r.Details = append([]uniform.DeficitDetail(nil), r.Details...)
	return r
}
