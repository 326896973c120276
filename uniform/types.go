/*
Package uniform provides the core uniform-inventory and distribution engine.

PURPOSE:
  This package contains the domain model and algorithms for tracking school
  uniform requirements, batch stock, per-student receipt logs, and the derived
  deficit reports that show which students are still missing required items.

KEY CONCEPTS IN THIS FILE (types.go):
  - PolicyEntry: a per-level/gender rule for how many of a uniform each
    student must receive
  - Student: roster record carrying the receipt log and distribution records
  - LogEntry: one receipt (or unfulfilled size request) in a student's log
  - Batch/Variant/SizeStock: received stock, decremented as items are issued
  - SchoolReport/StudentReport: denormalized deficit snapshots

DESIGN PRINCIPLES:
  1. Derived data is disposable: reports can always be regenerated from
     Policy + Roster + Log and are never the source of truth
  2. Precision: prices use decimal.Decimal, never float
  3. No ambient state: every function takes its data as explicit parameters
  4. A LogEntry is either a receipt or a size request, never both

SEE ALSO:
  - deficit.go: deficit computation over these types
  - stock.go: transactional stock deduction
  - issue.go: the log-received orchestration
  - store.go: persistence interfaces
*/
package uniform

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SchoolID string
type StudentID string
type UniformID string
type BatchID string

// =============================================================================
// SCHOOL & POLICY
// =============================================================================

type SchoolStatus string

const (
	SchoolActive   SchoolStatus = "active"
	SchoolInactive SchoolStatus = "inactive"
)

// School owns its uniform policy and a denormalized roster summary.
// The roster summary duplicates data held on Student documents; keeping the
// two in sync is RosterService's job (see roster.go).
type School struct {
	ID     SchoolID
	Name   string
	Status SchoolStatus

	// Ordered; mutated only via AddPolicyEntry/RemovePolicyEntry.
	UniformPolicy []PolicyEntry

	// Denormalized roster summary, one entry per student.
	Roster []RosterEntry

	CreatedAt time.Time
}

// PolicyEntry states how many of a uniform a student of a given level and
// gender must receive. QuantityPerStudent >= 1 is enforced on add.
type PolicyEntry struct {
	ID                 string
	UniformID          UniformID
	UniformName        string
	UniformType        string
	Level              string
	Gender             string
	QuantityPerStudent int
	IsRequired         bool
	CreatedAt          time.Time
}

// PolicyKey identifies the canonical grouping of policy entries.
// Duplicate entries for the same key may exist transiently; the engine
// treats the first occurrence in iteration order as canonical.
type PolicyKey struct {
	UniformID UniformID
	Level     string
	Gender    string
}

func (p PolicyEntry) Key() PolicyKey {
	return PolicyKey{UniformID: p.UniformID, Level: p.Level, Gender: p.Gender}
}

// RosterEntry is the summary of a student kept on the School document.
type RosterEntry struct {
	StudentID StudentID
	Name      string
	Form      string
	Level     string
	Gender    string
}

// =============================================================================
// STUDENT & RECEIPT LOG
// =============================================================================

type Student struct {
	ID       StudentID
	SchoolID SchoolID
	Name     string
	Form     string
	Level    string
	Gender   string

	// Append-only from the caller's perspective; historical entries are
	// only ever removed explicitly by index.
	UniformLog []LogEntry

	// Finer-grained receipt records keyed "{GENDER}-{requirementIndex}".
	UniformDistribution map[string]Distribution

	CreatedAt time.Time
}

// LogEntry records either a receipt of uniform items or an unfulfilled size
// request. Exactly one of SizeReceived/SizeWanted is meaningful: a size
// request carries SizeWanted, no SizeReceived, and QuantityReceived == 0, so
// it contributes nothing to received-quantity totals. Use ReceivedEntry and
// SizeRequestEntry to construct the two shapes.
type LogEntry struct {
	ID               string
	UniformID        UniformID
	UniformName      string
	UniformType      string
	QuantityReceived int
	SizeReceived     string
	SizeWanted       string
	LoggedAt         time.Time
	LoggedBy         string
}

// IsSizeRequest reports whether this entry is an unfulfilled size request.
func (e LogEntry) IsSizeRequest() bool {
	return e.SizeWanted != "" && e.SizeReceived == ""
}

// ReceivedEntry builds a receipt log entry.
func ReceivedEntry(id string, u UniformRef, quantity int, size string, at time.Time, by string) LogEntry {
	return LogEntry{
		ID:               id,
		UniformID:        u.ID,
		UniformName:      u.Name,
		UniformType:      u.Type,
		QuantityReceived: quantity,
		SizeReceived:     size,
		LoggedAt:         at,
		LoggedBy:         by,
	}
}

// SizeRequestEntry builds an unfulfilled size request. QuantityReceived is
// always 0 for these entries.
func SizeRequestEntry(id string, u UniformRef, sizeWanted string, at time.Time, by string) LogEntry {
	return LogEntry{
		ID:          id,
		UniformID:   u.ID,
		UniformName: u.Name,
		UniformType: u.Type,
		SizeWanted:  strings.TrimSpace(sizeWanted),
		LoggedAt:    at,
		LoggedBy:    by,
	}
}

// UniformRef carries the identifying fields of a uniform item as they are
// denormalized onto log entries and policy entries.
type UniformRef struct {
	ID   UniformID
	Name string
	Type string
}

// =============================================================================
// DISTRIBUTION RECORDS
// =============================================================================

// Distribution is the finer-grained receipt record for one requirement slot.
// TotalReceived is always recomputed from Lines; it is never set directly.
type Distribution struct {
	Lines         []DistributionLine
	TotalReceived int
}

type DistributionLine struct {
	Size       string
	Quantity   int
	ReceivedAt time.Time
	IssuedBy   string
	IssuedByID string
}

// DistributionKey builds the "{GENDER}-{requirementIndex}" map key.
func DistributionKey(gender string, requirementIndex int) string {
	return strings.ToUpper(strings.TrimSpace(gender)) + "-" + strconv.Itoa(requirementIndex)
}

// =============================================================================
// STOCK: BATCH / VARIANT / SIZE
// =============================================================================

// Batch is a stock-receiving event. Items are decremented as uniforms are
// issued; quantities never go below zero.
type Batch struct {
	ID         BatchID
	UniformID  UniformID
	Reference  string
	Items      []Variant
	ReceivedAt time.Time
}

type Variant struct {
	VariantType string
	Color       string
	Price       decimal.Decimal
	Sizes       []SizeStock
}

// SizeStock tracks remaining quantity for one size of a variant.
// DepletedAt is stamped on the first transition to zero only; subsequent
// no-op deductions do not reset it.
type SizeStock struct {
	Size       string
	Quantity   int
	DepletedAt *time.Time
}

// Value returns the monetary value of the remaining stock for this variant.
func (v Variant) Value() decimal.Decimal {
	total := decimal.Zero
	for _, s := range v.Sizes {
		total = total.Add(v.Price.Mul(decimal.NewFromInt(int64(s.Quantity))))
	}
	return total
}

// StockCheck is the result of a pre-issue availability lookup.
type StockCheck struct {
	Available    bool
	CurrentStock int
	BatchID      BatchID
	VariantIndex int
}

// =============================================================================
// DEFICIT REPORTS (derived, disposable)
// =============================================================================

// UniformDeficit aggregates the shortfall of one uniform requirement across
// the roster.
type UniformDeficit struct {
	UniformID          UniformID
	UniformName        string
	UniformType        string
	Level              string
	Gender             string
	RequiredPerStudent int
	TotalDeficit       int
	StudentsAffected   []StudentDeficit
}

type StudentDeficit struct {
	StudentID   StudentID
	StudentName string
	Deficit     int
}

// SizeRequest aggregates unfulfilled size requests for one (uniform, size).
type SizeRequest struct {
	UniformID   UniformID
	UniformName string
	Size        string
	Students    []SizeRequester
}

type SizeRequester struct {
	StudentID   StudentID
	StudentName string
	RequestedAt time.Time
}

// Summary is the Deficit Engine output for a full roster.
type Summary struct {
	UniformDeficits     []UniformDeficit
	SizeRequests        []SizeRequest
	TotalStudents       int
	StudentsWithDeficit int
}

// SchoolReport is the persisted school-wide snapshot of a Summary.
type SchoolReport struct {
	SchoolID   SchoolID
	SchoolName string
	Summary
	GeneratedAt time.Time
}

// StudentReport is the persisted per-student snapshot, kept only for
// students with a non-zero total deficit.
type StudentReport struct {
	SchoolID     SchoolID
	StudentID    StudentID
	StudentName  string
	TotalDeficit int
	Details      []DeficitDetail
	GeneratedAt  time.Time
}

// DeficitDetail is the per-uniform breakdown on a student report.
type DeficitDetail struct {
	UniformID   UniformID
	UniformName string
	Required    int
	Received    int
	Deficit     int
}
