// Package emit totally orders clustered changesets, applies the
// trailing safety window and incremental-resume scan, and drives one of
// the two stream writers (FastImportWriter, DumpWriter), following both
// entry points' main() loops in original_source/cvs2gitdump.py and
// cvs2svndump.py.
package emit

import (
	"fmt"
	"sort"

	"github.com/rcowham/cvs2git/internal/changeset"
	"github.com/rcowham/cvs2git/internal/tagindex"
)

// SafetyWindowSeconds is the trailing window withheld unless disabled,
// protecting against emitting a commit while a CVS commit affecting
// other files is still in flight.
const SafetyWindowSeconds = 600

// Order sorts changesets into the final total order via the
// changeset.Key comparator.
func Order(keys []*changeset.Key) []*changeset.Key {
	out := make([]*changeset.Key, len(keys))
	copy(out, keys)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// WithholdTail returns the prefix of an already-ordered changeset slice
// that is safe to emit: everything up to (not including) any changeset
// whose MaxTime falls within SafetyWindowSeconds of the globally latest
// MaxTime. skip disables the window entirely (the -a flag).
func WithholdTail(ordered []*changeset.Key, skip bool) []*changeset.Key {
	if len(ordered) == 0 {
		return ordered
	}
	if skip {
		return ordered
	}
	latest := ordered[0].MaxTime
	for _, k := range ordered[1:] {
		if k.MaxTime > latest {
			latest = k.MaxTime
		}
	}
	cutoff := latest - SafetyWindowSeconds
	for i, k := range ordered {
		if k.MaxTime > cutoff {
			return ordered[:i]
		}
	}
	return ordered
}

// Tip identifies a target repository's current head, used to anchor an
// incremental run's resume scan.
type Tip struct {
	Time   int64
	Author string
}

// Resume scans ordered from the start, discarding changesets until one
// matches tip, and returns the changesets strictly after the match plus
// the accumulated excluded-tags index built from every discarded
// changeset (including the matching one itself, matching main()'s own
// "extags.add before continue" behavior). Returns an error if tip is
// never found — an incremental run must never silently re-emit history.
func Resume(ordered []*changeset.Key, tip Tip) ([]*changeset.Key, *tagindex.ResumeState, error) {
	rs := tagindex.NewResumeState(tip.Time, tip.Author)
	i := 0
	for ; i < len(ordered); i++ {
		matched := rs.Observe(ordered[i])
		if matched {
			i++
			break
		}
	}
	if !rs.Found() {
		return nil, rs, fmt.Errorf("emit: could not find the last revision (tip time=%d author=%s)", tip.Time, tip.Author)
	}
	return ordered[i:], rs, nil
}

// MarkSpace is a monotonically increasing mark sequence shared across
// every emitted blob and commit mark in a run.
type MarkSpace struct {
	next int
}

// NewMarkSpace starts a MarkSpace after startAfter. Both cmd binaries
// pass the file walk's final markseq, for full and incremental runs
// alike, and allocate every blob and commit mark from it during the
// emission pass.
func NewMarkSpace(startAfter int) *MarkSpace {
	return &MarkSpace{next: startAfter}
}

// Next allocates and returns the next mark number.
func (m *MarkSpace) Next() int {
	m.next++
	return m.next
}
