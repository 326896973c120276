/*
distribution.go - Finer-grained receipt records

PURPOSE:
  Distribution records break one requirement slot ("BOYS-0", "GIRLS-2") into
  individual size/quantity issues. TotalReceived on a Distribution is always
  recomputed from its lines on every mutation - it is never independently
  settable, so the sum invariant cannot drift.
*/
package uniform

// AddDistribution appends a line under the given key and recomputes the
// total. A nil map is allocated; returns the updated map.
func AddDistribution(dist map[string]Distribution, key string, line DistributionLine) (map[string]Distribution, error) {
	if key == "" {
		return dist, &ValidationError{Field: "key", Reason: "required"}
	}
	if line.Quantity < 1 {
		return dist, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if dist == nil {
		dist = make(map[string]Distribution)
	}

	d := dist[key]
	d.Lines = append(d.Lines, line)
	d.TotalReceived = sumLines(d.Lines)
	dist[key] = d
	return dist, nil
}

// RemoveDistribution removes the line at index under the given key and
// recomputes the total. Out-of-range indexes are a validation error.
func RemoveDistribution(dist map[string]Distribution, key string, index int) (map[string]Distribution, error) {
	d, ok := dist[key]
	if !ok {
		return dist, &ValidationError{Field: "key", Reason: "no distribution record"}
	}
	if index < 0 || index >= len(d.Lines) {
		return dist, &ValidationError{Field: "index", Reason: "out of range"}
	}

	d.Lines = append(d.Lines[:index:index], d.Lines[index+1:]...)
	d.TotalReceived = sumLines(d.Lines)
	if len(d.Lines) == 0 {
		delete(dist, key)
		return dist, nil
	}
	dist[key] = d
	return dist, nil
}

func sumLines(lines []DistributionLine) int {
	total := 0
	for _, l := range lines {
		if l.Quantity > 0 {
			total += l.Quantity
		}
	}
	return total
}
