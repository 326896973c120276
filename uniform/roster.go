/*
roster.go - Roster management with the dual-write saga

PURPOSE:
  A student exists twice: as a full document in the student collection and
  as a denormalized summary entry on the School document. Add and delete
  must touch both. When the second write fails after the first succeeded,
  the two representations are inconsistent; the service surfaces that as a
  distinct *DualWriteError instead of silently proceeding, so the caller
  can reconcile.

SAGA ORDER:
  Add:    student document first, then school summary. A failed first half
          leaves nothing behind.
  Delete: school summary first, then student document. The summary is the
          discoverable half; dropping it first means a half-deleted student
          disappears from rosters immediately.

SEE ALSO:
  - errors.go: DualWriteError
  - store.go: SchoolStore / StudentStore
*/
package uniform

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROSTER SERVICE
// =============================================================================

type RosterService struct {
	schools  SchoolStore
	students StudentStore

	// Overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewRosterService(schools SchoolStore, students StudentStore) *RosterService {
	return &RosterService{
		schools:  schools,
		students: students,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// AddStudent creates the full student document and the roster summary on the
// School document. Returns the created student.
func (r *RosterService) AddStudent(ctx context.Context, schoolID SchoolID, name, form, level, gender string) (*Student, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if level == "" || gender == "" {
		return nil, &ValidationError{Field: "level/gender", Reason: "required"}
	}

	school, err := r.schools.School(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, ErrSchoolNotFound
	}

	student := Student{
		ID:        StudentID(r.NewID()),
		SchoolID:  schoolID,
		Name:      name,
		Form:      form,
		Level:     level,
		Gender:    gender,
		CreatedAt: r.Now(),
	}

	if err := r.students.AddStudent(ctx, student); err != nil {
		return nil, err
	}

	school.Roster = append(school.Roster, RosterEntry{
		StudentID: student.ID,
		Name:      student.Name,
		Form:      student.Form,
		Level:     student.Level,
		Gender:    student.Gender,
	})
	if err := r.schools.SaveSchool(ctx, *school); err != nil {
		return nil, &DualWriteError{
			Op:        "add-student",
			Completed: "student document",
			Failed:    "school roster summary",
			Err:       err,
		}
	}

	return &student, nil
}

// DeleteStudent removes the roster summary and the student document.
func (r *RosterService) DeleteStudent(ctx context.Context, schoolID SchoolID, studentID StudentID) error {
	school, err := r.schools.School(ctx, schoolID)
	if err != nil {
		return err
	}
	if school == nil {
		return ErrSchoolNotFound
	}

	kept := school.Roster[:0:0]
	found := false
	for _, entry := range school.Roster {
		if entry.StudentID == studentID {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		// Summary may already be gone from an earlier half-failed delete;
		// still remove the student document below.
		kept = school.Roster
	}
	school.Roster = kept

	if found {
		if err := r.schools.SaveSchool(ctx, *school); err != nil {
			return err
		}
	}

	if err := r.students.DeleteStudent(ctx, studentID); err != nil {
		if found {
			return &DualWriteError{
				Op:        "delete-student",
				Completed: "school roster summary",
				Failed:    "student document",
				Err:       err,
			}
		}
		return err
	}
	return nil
}

// Students returns the full roster for a school.
func (r *RosterService) Students(ctx context.Context, schoolID SchoolID) ([]Student, error) {
	return r.students.StudentsBySchool(ctx, schoolID)
}

// Student returns one student document.
func (r *RosterService) Student(ctx context.Context, id StudentID) (*Student, error) {
	return r.students.Student(ctx, id)
}
