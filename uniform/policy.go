/*
policy.go - Uniform policy mutation helpers

PURPOSE:
  Add/remove operations over a School's ordered policy entries. These are
  pure helpers: they take a School value and return the updated copy; the
  caller persists the school document.

BACKWARD COMPATIBILITY:
  Entries created before synthetic ids existed carry an empty ID. Removal
  matches by id when both sides have one, and falls back to the
  (uniformID, level, gender) triple otherwise.

SEE ALSO:
  - deficit.go: groupPolicies, the read side of the same entries
  - factory/: named policy presets applied through AddPolicyEntry
*/
package uniform

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// POLICY MUTATIONS
// =============================================================================

// AddPolicyEntry validates and appends a policy entry, assigning a synthetic
// id and creation timestamp. Returns the updated school.
func AddPolicyEntry(school School, entry PolicyEntry, now time.Time) (School, error) {
	if entry.UniformID == "" {
		return school, &ValidationError{Field: "uniformId", Reason: "required"}
	}
	if entry.Level == "" || entry.Gender == "" {
		return school, &ValidationError{Field: "level/gender", Reason: "required"}
	}
	if entry.QuantityPerStudent < 1 {
		return school, &ValidationError{Field: "quantityPerStudent", Reason: "must be at least 1"}
	}

	entry.ID = uuid.NewString()
	entry.CreatedAt = now
	school.UniformPolicy = append(school.UniformPolicy, entry)
	return school, nil
}

// RemovePolicyEntry removes the first entry matching by id, or - for legacy
// entries without ids - by the (uniformID, level, gender) triple. Returns
// the updated school and whether anything was removed.
func RemovePolicyEntry(school School, target PolicyEntry) (School, bool) {
	for i, entry := range school.UniformPolicy {
		if !matchesPolicy(entry, target) {
			continue
		}
		school.UniformPolicy = append(school.UniformPolicy[:i:i], school.UniformPolicy[i+1:]...)
		return school, true
	}
	return school, false
}

func matchesPolicy(entry, target PolicyEntry) bool {
	if entry.ID != "" && target.ID != "" {
		return entry.ID == target.ID
	}
	return entry.Key() == target.Key()
}

// PoliciesFor filters a school's policy to the entries applying to one
// level/gender.
func PoliciesFor(school School, level, gender string) []PolicyEntry {
	var out []PolicyEntry
	for _, entry := range school.UniformPolicy {
		if entry.Level == level && entry.Gender == gender {
			out = append(out, entry)
		}
	}
	return out
}
