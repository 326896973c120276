/*
Package sqlite provides a SQLite-backed implementation of the uniform
engine's storage interfaces.

PURPOSE:
  Implements uniform.Store (schools, students, batches, reports) with SQLite
  as a document store: each collection is a table of id/key columns plus a
  JSON document column. The same patterns apply to any document database
  with atomic read-modify-write - only the transaction plumbing differs.

KEY TABLES:
  schools          School documents (policy + roster summary embedded)
  students         Student documents (receipt log embedded), indexed by school
  batches          Stock documents, indexed by uniform
  school_reports   One deficit snapshot per school (replaced, never merged)
  student_reports  One snapshot per (school, student) with a deficit

TRANSACTIONS:
  WithTx wraps a database transaction around the batch read-modify-write.
  A busy/locked database surfaces as uniform.ErrTransactionConflict so the
  stock ledger's retry loop can distinguish transient contention from real
  failures.

WAL MODE:
  Opened with WAL so report reads do not block issue writes.

USAGE:
  st, err := sqlite.New("./data/uniforms.db")
  if err != nil { ... }
  defer st.Close()
  ledger := uniform.NewStockLedger(st)

SEE ALSO:
  - uniform/store.go: interface definitions
  - uniform/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kitroom/uniform-engine/uniform"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements uniform.Store over SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schools (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_school
		ON students(school_id);

	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		uniform_id TEXT NOT NULL,
		received_at TEXT NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batches_uniform
		ON batches(uniform_id);

	-- Deficit snapshots: fully replaced on every regeneration.
	CREATE TABLE IF NOT EXISTS school_reports (
		school_id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS student_reports (
		school_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		doc TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		PRIMARY KEY (school_id, student_id)
	);
	CREATE INDEX IF NOT EXISTS idx_student_reports_school
		ON student_reports(school_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHOOL STORE
// =============================================================================

func (s *Store) School(ctx context.Context, id uniform.SchoolID) (*uniform.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM schools WHERE id = ?`, string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, uniform.ErrSchoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return decodeDoc[uniform.School](doc)
}

func (s *Store) Schools(ctx context.Context) ([]uniform.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[uniform.School](ctx, s.db, `SELECT doc FROM schools ORDER BY created_at, id`)
}

func (s *Store) SaveSchool(ctx context.Context, school uniform.School) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(school)
	if err != nil {
		return fmt.Errorf("failed to encode school: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schools (id, doc, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(school.ID), string(doc), school.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save school: %w", err)
	}
	return nil
}

func (s *Store) DeleteSchool(ctx context.Context, id uniform.SchoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM schools WHERE id = ?`, string(id))
	return err
}

// =============================================================================
// STUDENT STORE
// =============================================================================

func (s *Store) Student(ctx context.Context, id uniform.StudentID) (*uniform.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getStudent(ctx, s.db, id)
}

func getStudent(ctx context.Context, q queryer, id uniform.StudentID) (*uniform.Student, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM students WHERE id = ?`, string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, uniform.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return decodeDoc[uniform.Student](doc)
}

func (s *Store) StudentsBySchool(ctx context.Context, schoolID uniform.SchoolID) ([]uniform.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[uniform.Student](ctx, s.db,
		`SELECT doc FROM students WHERE school_id = ? ORDER BY created_at, id`, string(schoolID))
}

func (s *Store) AddStudent(ctx context.Context, student uniform.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveStudent(ctx, s.db, student)
}

func saveStudent(ctx context.Context, e execer, student uniform.Student) error {
	doc, err := json.Marshal(student)
	if err != nil {
		return fmt.Errorf("failed to encode student: %w", err)
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO students (id, school_id, doc, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, school_id = excluded.school_id`,
		string(student.ID), string(student.SchoolID), string(doc),
		student.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

func (s *Store) DeleteStudent(ctx context.Context, id uniform.StudentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, string(id))
	return err
}

// AppendLog appends one entry to the student's log inside a transaction, so
// two concurrent appends cannot lose each other.
func (s *Store) AppendLog(ctx context.Context, id uniform.StudentID, entry uniform.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	defer tx.Rollback()

	student, err := getStudent(ctx, tx, id)
	if err != nil {
		return err
	}
	student.UniformLog = append(student.UniformLog, entry)
	if err := saveStudent(ctx, tx, *student); err != nil {
		return err
	}
	return mapConflict(tx.Commit())
}

func (s *Store) SaveDistributions(ctx context.Context, id uniform.StudentID, dist map[string]uniform.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	defer tx.Rollback()

	student, err := getStudent(ctx, tx, id)
	if err != nil {
		return err
	}
	student.UniformDistribution = dist
	if err := saveStudent(ctx, tx, *student); err != nil {
		return err
	}
	return mapConflict(tx.Commit())
}

// =============================================================================
// BATCH STORE
// =============================================================================

func (s *Store) Batch(ctx context.Context, id uniform.BatchID) (*uniform.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM batches WHERE id = ?`, string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, uniform.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return decodeDoc[uniform.Batch](doc)
}

func (s *Store) Batches(ctx context.Context) ([]uniform.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[uniform.Batch](ctx, s.db, `SELECT doc FROM batches ORDER BY received_at, id`)
}

func (s *Store) BatchesForUniform(ctx context.Context, uniformID uniform.UniformID) ([]uniform.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[uniform.Batch](ctx, s.db,
		`SELECT doc FROM batches WHERE uniform_id = ? ORDER BY received_at, id`, string(uniformID))
}

func (s *Store) SaveBatch(ctx context.Context, batch uniform.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBatch(ctx, s.db, batch)
}

func saveBatch(ctx context.Context, e execer, batch uniform.Batch) error {
	doc, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO batches (id, uniform_id, received_at, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(batch.ID), string(batch.UniformID),
		batch.ReceivedAt.UTC().Format(time.RFC3339), string(doc))
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id uniform.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, string(id))
	return err
}

// WithTx runs fn inside a database transaction. SQLITE_BUSY surfaces as
// uniform.ErrTransactionConflict for the stock ledger's retry loop.
func (s *Store) WithTx(ctx context.Context, fn func(tx uniform.BatchTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConflict(err)
	}
	defer sqlTx.Rollback()

	if err := fn(&batchTx{tx: sqlTx}); err != nil {
		return err
	}
	return mapConflict(sqlTx.Commit())
}

type batchTx struct {
	tx *sql.Tx
}

func (b *batchTx) BatchesForUniform(ctx context.Context, uniformID uniform.UniformID) ([]uniform.Batch, error) {
	return queryDocs[uniform.Batch](ctx, b.tx,
		`SELECT doc FROM batches WHERE uniform_id = ? ORDER BY received_at, id`, string(uniformID))
}

func (b *batchTx) SaveBatch(ctx context.Context, batch uniform.Batch) error {
	return saveBatch(ctx, b.tx, batch)
}

// =============================================================================
// REPORT STORE
// =============================================================================

func (s *Store) SchoolReport(ctx context.Context, schoolID uniform.SchoolID) (*uniform.SchoolReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM school_reports WHERE school_id = ?`, string(schoolID)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // absence is not an error; callers fall back to live computation
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get school report: %w", err)
	}
	return decodeDoc[uniform.SchoolReport](doc)
}

func (s *Store) StudentReport(ctx context.Context, schoolID uniform.SchoolID, studentID uniform.StudentID) (*uniform.StudentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM student_reports WHERE school_id = ? AND student_id = ?`,
		string(schoolID), string(studentID)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student report: %w", err)
	}
	return decodeDoc[uniform.StudentReport](doc)
}

func (s *Store) StudentReports(ctx context.Context, schoolID uniform.SchoolID) ([]uniform.StudentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDocs[uniform.StudentReport](ctx, s.db,
		`SELECT doc FROM student_reports WHERE school_id = ? ORDER BY student_id`, string(schoolID))
}

func (s *Store) SaveSchoolReport(ctx context.Context, report uniform.SchoolReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode school report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO school_reports (school_id, doc, generated_at) VALUES (?, ?, ?)
		ON CONFLICT(school_id) DO UPDATE SET doc = excluded.doc, generated_at = excluded.generated_at`,
		string(report.SchoolID), string(doc), report.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save school report: %w", err)
	}
	return nil
}

func (s *Store) SaveStudentReport(ctx context.Context, report uniform.StudentReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode student report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO student_reports (school_id, student_id, doc, generated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(school_id, student_id) DO UPDATE SET doc = excluded.doc, generated_at = excluded.generated_at`,
		string(report.SchoolID), string(report.StudentID), string(doc),
		report.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save student report: %w", err)
	}
	return nil
}

func (s *Store) DeleteStudentReport(ctx context.Context, schoolID uniform.SchoolID, studentID uniform.StudentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM student_reports WHERE school_id = ? AND student_id = ?`,
		string(schoolID), string(studentID))
	return err
}

func (s *Store) DeleteSchoolReport(ctx context.Context, schoolID uniform.SchoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM school_reports WHERE school_id = ?`, string(schoolID))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func decodeDoc[T any](doc string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &v, nil
}

func queryDocs[T any](ctx context.Context, q queryer, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		v, err := decodeDoc[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// mapConflict translates SQLite contention into the engine's conflict error.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return uniform.ErrTransactionConflict
	}
	return err
}
