/*
store.go - Persistence interfaces for the uniform engine

PURPOSE:
  Defines the interface between the domain logic and the document store.
  The underlying store is an external collaborator (a transactional document
  database); the engine only sees these narrow interfaces and never reaches
  into ambient state.

KEY INTERFACES:
  SchoolStore:  School documents (policy + roster summary live here)
  StudentStore: Full student documents with receipt logs
  BatchStore:   Stock documents + the transactional read-modify-write
                primitive the stock ledger needs
  ReportStore:  Denormalized deficit report snapshots

TRANSACTION CONTRACT:
  BatchStore.WithTx runs fn against a transactional view. The store
  guarantees that a concurrent writer to the same documents causes either
  serialization or ErrTransactionConflict - it never lets two
  read-modify-write cycles both commit against stale reads. Conflict
  retries are the caller's job (see stock.go).

WRITE SEMANTICS:
  Save* operations are full-document replacements (last writer wins).
  AppendLog is an array-append on the student document, matching the
  store's atomic array-union primitive.

IMPLEMENTATIONS:
  - store/sqlite: production store (JSON document rows over SQLite)
  - uniform/store: in-memory store for tests and dev

SEE ALSO:
  - stock.go: the only consumer of WithTx
  - report.go: consumer of ReportStore
*/
package uniform

import "context"

// =============================================================================
// SCHOOL STORE
// =============================================================================

type SchoolStore interface {
	// School returns nil, ErrSchoolNotFound when absent.
	School(ctx context.Context, id SchoolID) (*School, error)

	// Schools returns all schools, active and inactive.
	Schools(ctx context.Context) ([]School, error)

	// SaveSchool fully overwrites the document at school.ID.
	SaveSchool(ctx context.Context, school School) error

	DeleteSchool(ctx context.Context, id SchoolID) error
}

// =============================================================================
// STUDENT STORE
// =============================================================================

type StudentStore interface {
	// Student returns nil, ErrStudentNotFound when absent.
	Student(ctx context.Context, id StudentID) (*Student, error)

	// StudentsBySchool returns the full roster for a school.
	StudentsBySchool(ctx context.Context, schoolID SchoolID) ([]Student, error)

	// AddStudent creates the full student document.
	AddStudent(ctx context.Context, student Student) error

	DeleteStudent(ctx context.Context, id StudentID) error

	// AppendLog appends one entry to the student's uniform log.
	AppendLog(ctx context.Context, id StudentID, entry LogEntry) error

	// SaveDistributions replaces the student's distribution map.
	SaveDistributions(ctx context.Context, id StudentID, dist map[string]Distribution) error
}

// =============================================================================
// BATCH STORE (stock)
// =============================================================================

// BatchTx is the view of batch documents inside a transaction. Reads observe
// writes made earlier in the same transaction.
type BatchTx interface {
	BatchesForUniform(ctx context.Context, uniformID UniformID) ([]Batch, error)
	SaveBatch(ctx context.Context, batch Batch) error
}

type BatchStore interface {
	Batch(ctx context.Context, id BatchID) (*Batch, error)
	Batches(ctx context.Context) ([]Batch, error)
	BatchesForUniform(ctx context.Context, uniformID UniformID) ([]Batch, error)
	SaveBatch(ctx context.Context, batch Batch) error
	DeleteBatch(ctx context.Context, id BatchID) error

	// WithTx executes fn atomically. If fn returns an error the transaction
	// is rolled back. Concurrent modification surfaces as
	// ErrTransactionConflict from this method.
	WithTx(ctx context.Context, fn func(tx BatchTx) error) error
}

// =============================================================================
// REPORT STORE
// =============================================================================

type ReportStore interface {
	// SchoolReport returns nil, nil when no snapshot exists (callers fall
	// back to live computation; absence is not an error).
	SchoolReport(ctx context.Context, schoolID SchoolID) (*SchoolReport, error)

	// StudentReport returns nil, nil when no snapshot exists.
	StudentReport(ctx context.Context, schoolID SchoolID, studentID StudentID) (*StudentReport, error)

	// StudentReports returns all per-student snapshots for a school.
	StudentReports(ctx context.Context, schoolID SchoolID) ([]StudentReport, error)

	// SaveSchoolReport fully replaces the document keyed by SchoolID.
	SaveSchoolReport(ctx context.Context, report SchoolReport) error

	// SaveStudentReport fully replaces the document keyed by
	// (SchoolID, StudentID).
	SaveStudentReport(ctx context.Context, report StudentReport) error

	DeleteStudentReport(ctx context.Context, schoolID SchoolID, studentID StudentID) error
	DeleteSchoolReport(ctx context.Context, schoolID SchoolID) error
}

// =============================================================================
// COMPOSITE
// =============================================================================

// Store groups all persistence interfaces for wiring convenience.
// Both the SQLite and the in-memory store implement it.
type Store interface {
	SchoolStore
	StudentStore
	BatchStore
	ReportStore
}
