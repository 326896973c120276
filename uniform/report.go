/*
report.go - Denormalized deficit report snapshots

PURPOSE:
  Persists and retrieves the Deficit Engine's output as replaceable snapshot
  documents: one school-wide report keyed by school, plus one report per
  student who currently has a non-zero deficit, keyed (school, student).
  Reports are derived, disposable caches - never the source of truth.

REPLACE + CLEANUP SEMANTICS:
  Every write fully overwrites the prior document at its key. GenerateAndStore
  also deletes per-student reports for students who NO LONGER have a deficit,
  so stale snapshots cannot outlive a regeneration regardless of which entry
  point triggered it.

ORDERING:
  New reports are written before stale ones are deleted. A concurrent reader
  never observes the window where old reports are gone but new ones are not
  yet written.

INVALIDATION:
  Reports are logically stale whenever the policy or any relevant student's
  log changes. Nothing auto-invalidates; a caller-triggered Refresh (or the
  api package's background scheduler) regenerates.

SEE ALSO:
  - deficit.go: the computation this snapshot persists
  - api/scheduler.go: periodic refresh driver
*/
package uniform

import (
	"context"
	"time"
)

// =============================================================================
// REPORTER
// =============================================================================

type Reporter struct {
	reports ReportStore

	// Overridable for tests.
	Now func() time.Time
}

func NewReporter(reports ReportStore) *Reporter {
	return &Reporter{reports: reports, Now: time.Now}
}

// ReportSet is what one generation run produced.
type ReportSet struct {
	School   SchoolReport
	Students []StudentReport
}

// =============================================================================
// GENERATION
// =============================================================================

// GenerateAndStore runs the engine once over the roster and persists the
// school-wide report plus one report per student with a non-zero deficit.
// Per-student reports for students who no longer qualify are removed after
// the new documents are in place.
func (r *Reporter) GenerateAndStore(ctx context.Context, schoolID SchoolID, schoolName string, policies []PolicyEntry, students []Student) (*ReportSet, error) {
	now := r.Now()
	summary := ComputeDeficits(policies, students)

	set := &ReportSet{
		School: SchoolReport{
			SchoolID:    schoolID,
			SchoolName:  schoolName,
			Summary:     summary,
			GeneratedAt: now,
		},
	}

	kept := make(map[StudentID]bool)
	for _, student := range students {
		report := ComputeStudentReport(policies, student)
		if report.TotalDeficit == 0 {
			continue
		}
		report.SchoolID = schoolID
		report.GeneratedAt = now
		if err := r.reports.SaveStudentReport(ctx, report); err != nil {
			return nil, err
		}
		kept[student.ID] = true
		set.Students = append(set.Students, report)
	}

	if err := r.reports.SaveSchoolReport(ctx, set.School); err != nil {
		return nil, err
	}

	// Cleanup runs last: writes first, then stale deletes, so readers never
	// see an empty window.
	existing, err := r.reports.StudentReports(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	for _, old := range existing {
		if kept[old.StudentID] {
			continue
		}
		if err := r.reports.DeleteStudentReport(ctx, schoolID, old.StudentID); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// Refresh regenerates the school's reports. With cleanup folded into
// GenerateAndStore this is an alias, kept as the explicit
// "policy or logs changed, rebuild" entry point.
func (r *Reporter) Refresh(ctx context.Context, schoolID SchoolID, schoolName string, policies []PolicyEntry, students []Student) (*ReportSet, error) {
	return r.GenerateAndStore(ctx, schoolID, schoolName, policies, students)
}

// =============================================================================
// READS
// =============================================================================

// SchoolReport returns the stored snapshot, or nil when none exists.
// Callers fall back to live computation; a read never writes back.
func (r *Reporter) SchoolReport(ctx context.Context, schoolID SchoolID) (*SchoolReport, error) {
	return r.reports.SchoolReport(ctx, schoolID)
}

// StudentReport returns the stored per-student snapshot, or nil when the
// student has no stored deficit report.
func (r *Reporter) StudentReport(ctx context.Context, schoolID SchoolID, studentID StudentID) (*StudentReport, error) {
	return r.reports.StudentReport(ctx, schoolID, studentID)
}

// Drop removes every stored report for a school. Used when a school is
// deleted.
func (r *Reporter) Drop(ctx context.Context, schoolID SchoolID) error {
	existing, err := r.reports.StudentReports(ctx, schoolID)
	if err != nil {
		return err
	}
	for _, old := range existing {
		if err := r.reports.DeleteStudentReport(ctx, schoolID, old.StudentID); err != nil {
			return err
		}
	}
	return r.reports.DeleteSchoolReport(ctx, schoolID)
}
