/*
issue.go - Logging a received uniform (or an unfulfilled size request)

PURPOSE:
  Orchestrates the single logical operation behind "student received N of
  uniform X in size S": validate, deduct stock transactionally, then append
  the receipt entry to the student's log. The size-unavailable branch skips
  stock entirely and records a size request instead.

ORDERING:
  Stock is deducted before the log entry is appended. A failed deduction
  (insufficient stock, exhausted retries) leaves the student's log untouched.

ERROR CONTRACT:
  Insufficient stock is an expected outcome, not an exceptional path: it is
  returned as a typed *InsufficientStockError the caller inspects, never as
  a panic or a bare string.

SEE ALSO:
  - stock.go: the deduction transaction
  - types.go: ReceivedEntry / SizeRequestEntry constructors
*/
package uniform

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ISSUE SERVICE
// =============================================================================

type IssueService struct {
	students StudentStore
	ledger   *StockLedger

	// Overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewIssueService(students StudentStore, ledger *StockLedger) *IssueService {
	return &IssueService{
		students: students,
		ledger:   ledger,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// IssueInput describes one log-received request.
type IssueInput struct {
	StudentID StudentID
	Uniform   UniformRef
	Quantity  int

	// Received branch: the size handed out.
	Size string

	// Size-unavailable branch: no stock is touched, a size request is
	// logged instead.
	SizeUnavailable bool
	SizeWanted      string

	// Actor performing the issue (display name resolution is the caller's
	// concern).
	Actor string
}

// LogReceived validates, deducts stock where a size was issued, and appends
// the resulting entry to the student's uniform log.
func (s *IssueService) LogReceived(ctx context.Context, input IssueInput) (LogEntry, error) {
	if err := s.validate(input); err != nil {
		return LogEntry{}, err
	}

	student, err := s.students.Student(ctx, input.StudentID)
	if err != nil {
		return LogEntry{}, err
	}
	if student == nil {
		return LogEntry{}, ErrStudentNotFound
	}

	now := s.Now()

	// Size-unavailable branch: record the request, touch no stock.
	if input.SizeUnavailable {
		entry := SizeRequestEntry(s.NewID(), input.Uniform, input.SizeWanted, now, input.Actor)
		if err := s.students.AppendLog(ctx, student.ID, entry); err != nil {
			return LogEntry{}, err
		}
		return entry, nil
	}

	// Received branch: deduct first; a failed deduction must leave the log
	// untouched.
	if _, err := s.ledger.Deduct(ctx, input.Uniform.ID, input.Size, input.Quantity); err != nil {
		return LogEntry{}, err
	}

	entry := ReceivedEntry(s.NewID(), input.Uniform, input.Quantity, strings.TrimSpace(input.Size), now, input.Actor)
	if err := s.students.AppendLog(ctx, student.ID, entry); err != nil {
		return LogEntry{}, err
	}
	return entry, nil
}

func (s *IssueService) validate(input IssueInput) error {
	if input.StudentID == "" {
		return &ValidationError{Field: "studentId", Reason: "required"}
	}
	if input.Uniform.ID == "" {
		return &ValidationError{Field: "uniformId", Reason: "required"}
	}

	if input.SizeUnavailable {
		if strings.TrimSpace(input.SizeWanted) == "" {
			return &ValidationError{Field: "sizeWanted", Reason: "required when size is unavailable"}
		}
		return nil
	}

	if strings.TrimSpace(input.Size) == "" {
		return &ValidationError{Field: "size", Reason: "select a size or flag it unavailable"}
	}
	if input.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	return nil
}
