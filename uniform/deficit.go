/*
deficit.go - The deficit computation engine

PURPOSE:
  Pure computation: given a school's uniform policy and its roster (with each
  student's receipt log), compute per-uniform and per-student deficits plus
  the unfulfilled size requests. No I/O, no clocks, no hidden state: calling
  it twice on the same input yields identical output.

ALGORITHM:
  1. Group policy entries by (uniformID, level, gender); the first entry per
     key in iteration order is canonical, later duplicates are ignored
  2. For each student, for each canonical entry matching the student's
     level and gender:
       received = sum of matching log quantities (size requests count 0)
       deficit  = max(0, requiredPerStudent - received)
     Deficits accumulate into per-uniform aggregates; size requests
     accumulate keyed by (uniformID, sizeWanted) with students de-duplicated
  3. Sort deficits by TotalDeficit descending (stable), size requests by
     uniform name then size ascending

FAILURE SEMANTICS:
  Never fails. Malformed input is defensively defaulted: nil slices are
  empty, negative stored quantities count as zero.

SEE ALSO:
  - report.go: persists this output as denormalized snapshots
  - types.go: Summary, UniformDeficit, SizeRequest
*/
package uniform

import "sort"

// =============================================================================
// ROSTER-WIDE COMPUTATION
// =============================================================================

// ComputeDeficits runs the engine over a full roster.
func ComputeDeficits(policies []PolicyEntry, students []Student) Summary {
	canonical := groupPolicies(policies)

	aggregates := make(map[PolicyKey]*UniformDeficit)
	var aggregateOrder []PolicyKey

	type requestKey struct {
		UniformID UniformID
		Size      string
	}
	requests := make(map[requestKey]*SizeRequest)
	seenRequester := make(map[requestKey]map[StudentID]bool)
	var requestOrder []requestKey

	deficient := make(map[StudentID]bool)

	for _, student := range students {
		for _, policy := range canonical {
			if policy.Level != student.Level || policy.Gender != student.Gender {
				continue
			}

			matches := matchingLog(student.UniformLog, policy.UniformID)
			received := receivedTotal(matches)

			deficit := required(policy) - received
			if deficit > 0 {
				deficient[student.ID] = true

				key := policy.Key()
				agg, ok := aggregates[key]
				if !ok {
					agg = &UniformDeficit{
						UniformID:          policy.UniformID,
						UniformName:        policy.UniformName,
						UniformType:        policy.UniformType,
						Level:              policy.Level,
						Gender:             policy.Gender,
						RequiredPerStudent: required(policy),
					}
					aggregates[key] = agg
					aggregateOrder = append(aggregateOrder, key)
				}
				agg.TotalDeficit += deficit
				agg.StudentsAffected = append(agg.StudentsAffected, StudentDeficit{
					StudentID:   student.ID,
					StudentName: student.Name,
					Deficit:     deficit,
				})
			}

			// Size requests are collected independently of deficit state.
			for _, entry := range matches {
				if !entry.IsSizeRequest() {
					continue
				}
				key := requestKey{UniformID: policy.UniformID, Size: entry.SizeWanted}
				req, ok := requests[key]
				if !ok {
					req = &SizeRequest{
						UniformID:   policy.UniformID,
						UniformName: policy.UniformName,
						Size:        entry.SizeWanted,
					}
					requests[key] = req
					seenRequester[key] = make(map[StudentID]bool)
					requestOrder = append(requestOrder, key)
				}
				if seenRequester[key][student.ID] {
					continue
				}
				seenRequester[key][student.ID] = true
				req.Students = append(req.Students, SizeRequester{
					StudentID:   student.ID,
					StudentName: student.Name,
					RequestedAt: entry.LoggedAt,
				})
			}
		}
	}

	summary := Summary{
		TotalStudents:       len(students),
		StudentsWithDeficit: len(deficient),
	}
	for _, key := range aggregateOrder {
		summary.UniformDeficits = append(summary.UniformDeficits, *aggregates[key])
	}
	for _, key := range requestOrder {
		summary.SizeRequests = append(summary.SizeRequests, *requests[key])
	}

	sort.SliceStable(summary.UniformDeficits, func(i, j int) bool {
		return summary.UniformDeficits[i].TotalDeficit > summary.UniformDeficits[j].TotalDeficit
	})
	sort.SliceStable(summary.SizeRequests, func(i, j int) bool {
		a, b := summary.SizeRequests[i], summary.SizeRequests[j]
		if a.UniformName != b.UniformName {
			return a.UniformName < b.UniformName
		}
		return a.Size < b.Size
	})

	return summary
}

// =============================================================================
// PER-STUDENT COMPUTATION
// =============================================================================

// ComputeStudentReport runs the same algorithm for a single student,
// returning the full per-uniform {required, received, deficit} breakdown
// instead of roster aggregates.
func ComputeStudentReport(policies []PolicyEntry, student Student) StudentReport {
	report := StudentReport{
		SchoolID:    student.SchoolID,
		StudentID:   student.ID,
		StudentName: student.Name,
	}

	for _, policy := range groupPolicies(policies) {
		if policy.Level != student.Level || policy.Gender != student.Gender {
			continue
		}
		received := receivedTotal(matchingLog(student.UniformLog, policy.UniformID))
		deficit := required(policy) - received
		if deficit < 0 {
			deficit = 0
		}
		report.Details = append(report.Details, DeficitDetail{
			UniformID:   policy.UniformID,
			UniformName: policy.UniformName,
			Required:    required(policy),
			Received:    received,
			Deficit:     deficit,
		})
		report.TotalDeficit += deficit
	}

	return report
}

// =============================================================================
// HELPERS
// =============================================================================

// groupPolicies returns the canonical entry per (uniformID, level, gender),
// preserving first-occurrence order. Duplicate keys may exist transiently in
// a school document; the first one wins.
func groupPolicies(policies []PolicyEntry) []PolicyEntry {
	seen := make(map[PolicyKey]bool, len(policies))
	canonical := make([]PolicyEntry, 0, len(policies))
	for _, p := range policies {
		key := p.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		canonical = append(canonical, p)
	}
	return canonical
}

func matchingLog(log []LogEntry, uniformID UniformID) []LogEntry {
	var matches []LogEntry
	for _, entry := range log {
		if entry.UniformID == uniformID {
			matches = append(matches, entry)
		}
	}
	return matches
}

// receivedTotal sums received quantities. Size-request entries store 0 and
// contribute nothing; negative stored values are clamped to 0.
func receivedTotal(entries []LogEntry) int {
	total := 0
	for _, entry := range entries {
		if entry.QuantityReceived > 0 {
			total += entry.QuantityReceived
		}
	}
	return total
}

// required clamps a malformed negative requirement to 0.
func required(p PolicyEntry) int {
	if p.QuantityPerStudent < 0 {
		return 0
	}
	return p.QuantityPerStudent
}
