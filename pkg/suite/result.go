package suite

import (
	"sort"
	"time"
)

// Status is the outcome of one hook on one file.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusFixed   Status = "fixed"
	StatusCached  Status = "cached"
	StatusSkipped Status = "skipped"
)

// Result records one hook applied to one file.
type Result struct {
	Hook        string
	File        string
	Status      Status
	Err         error
	Reformatted bool
	Duration    time.Duration
}

// Summary collects the results of a suite run in hook order, files
// sorted within each hook.
type Summary struct {
	Results []Result
}

// Failed reports whether the run should exit non-zero: any failure or
// any rewritten file counts, so CI flags fixes that were never
// committed.
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Status == StatusFail || r.Reformatted {
			return true
		}
	}
	return false
}

// ReformattedFiles returns the files any hook rewrote, sorted and
// deduplicated.
func (s *Summary) ReformattedFiles() []string {
	seen := make(map[string]bool)
	for _, r := range s.Results {
		if r.Reformatted {
			seen[r.File] = true
		}
	}
	return sortedKeys(seen)
}

// UnchangedFiles returns the files that were processed and left alone:
// no rewrite and no failure from any hook.
func (s *Summary) UnchangedFiles() []string {
	excluded := make(map[string]bool)
	processed := make(map[string]bool)
	for _, r := range s.Results {
		processed[r.File] = true
		if r.Reformatted || r.Status == StatusFail {
			excluded[r.File] = true
		}
	}

	unchanged := make(map[string]bool)
	for file := range processed {
		if !excluded[file] {
			unchanged[file] = true
		}
	}
	return sortedKeys(unchanged)
}

// Failures returns the failing results in run order.
func (s *Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Status == StatusFail {
			out = append(out, r)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
