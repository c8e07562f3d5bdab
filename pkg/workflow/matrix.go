package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// Combination is one point of a job's matrix: axis name to chosen value.
type Combination map[string]string

// Key renders the combination the way run keys embed it: values joined by
// ", " in axis-sorted order. Empty combinations render as an empty string.
func (c Combination) Key() string {
	if len(c) == 0 {
		return ""
	}
	axes := make([]string, 0, len(c))
	for axis := range c {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	values := make([]string, len(axes))
	for i, axis := range axes {
		values[i] = c[axis]
	}
	return strings.Join(values, ", ")
}

// Env returns the combination as MATRIX_<AXIS> environment variables, with
// axis names upper-cased and non-alphanumeric runes mapped to underscores.
func (c Combination) Env() map[string]string {
	env := make(map[string]string, len(c))
	for axis, value := range c {
		env["MATRIX_"+envName(axis)] = value
	}
	return env
}

func envName(axis string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(axis) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (c Combination) clone() Combination {
	out := make(Combination, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Combination) equal(other Combination) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		if other[k] != v {
			return false
		}
	}
	return true
}

// matchedBy reports whether every pair of the (sub)entry holds in c.
func (c Combination) matchedBy(entry map[string]string) bool {
	if len(entry) == 0 {
		return false
	}
	for k, v := range entry {
		if c[k] != v {
			return false
		}
	}
	return true
}

// Expand produces the job's combinations in deterministic order: the
// cartesian product walks axes in sorted name order with values in listed
// order, excludes remove subset-matching combinations, includes append
// combinations not already present. A matrix with no axes yields one empty
// combination.
func (m Matrix) Expand() []Combination {
	combos := []Combination{{}}
	for _, axis := range m.axisNames() {
		next := make([]Combination, 0, len(combos)*len(m.axes[axis]))
		for _, combo := range combos {
			for _, value := range m.axes[axis] {
				c := combo.clone()
				c[axis] = value
				next = append(next, c)
			}
		}
		combos = next
	}

	if len(m.Exclude) > 0 {
		kept := combos[:0]
		for _, combo := range combos {
			excluded := false
			for _, entry := range m.Exclude {
				if combo.matchedBy(entry) {
					excluded = true
					break
				}
			}
			if !excluded {
				kept = append(kept, combo)
			}
		}
		combos = kept
	}

	for _, entry := range m.Include {
		combo := Combination(entry).clone()
		exists := false
		for _, existing := range combos {
			if existing.equal(combo) {
				exists = true
				break
			}
		}
		if !exists {
			combos = append(combos, combo)
		}
	}

	return combos
}

// runKey names one expansion of a job: `job` for matrix-less jobs, else
// `job (v1, v2)` with values in axis-sorted order.
func runKey(jobID string, combo Combination) string {
	suffix := combo.Key()
	if suffix == "" {
		return jobID
	}
	return fmt.Sprintf("%s (%s)", jobID, suffix)
}
