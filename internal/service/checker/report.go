package checker

import (
	"github.com/oshokin/reqcheck/internal/console"
	"github.com/oshokin/reqcheck/internal/domain/requirement"
)

// Entry is the outcome for one requirement.
type Entry struct {
	Requirement requirement.Requirement
	Status      requirement.Status
	// Version is the installed version for already installed entries.
	Version string
	// Err is the installer error for failed entries.
	Err error
}

// Report lists outcomes in file order.
type Report struct {
	Entries []Entry
}

func (r *Report) add(entry Entry) {
	r.Entries = append(r.Entries, entry)
}

// Count returns how many entries ended with status.
func (r *Report) Count(status requirement.Status) int {
	count := 0

	for _, entry := range r.Entries {
		if entry.Status == status {
			count++
		}
	}

	return count
}

// Failed returns the entries whose installer failed.
func (r *Report) Failed() []Entry {
	var failed []Entry

	for _, entry := range r.Entries {
		if entry.Status == requirement.StatusFailed {
			failed = append(failed, entry)
		}
	}

	return failed
}

// Summary converts the report into console counters.
func (r *Report) Summary() console.Summary {
	return console.Summary{
		AlreadyInstalled: r.Count(requirement.StatusAlreadyInstalled),
		Installed:        r.Count(requirement.StatusInstalled),
		Failed:           r.Count(requirement.StatusFailed),
		Skipped:          r.Count(requirement.StatusSkipped),
	}
}
