// Package tagindex attributes each RCS symbolic tag to the single
// changeset that should carry it, and tracks which tags an incremental
// resume has already emitted, mirroring CvsConv.walk's "self.tags"
// bookkeeping and main()'s "extags" resume-skip set in
// original_source/cvs2gitdump.py.
package tagindex

import "github.com/rcowham/cvs2git/internal/changeset"

// Index attributes each tag name to whichever changeset.Key reaches the
// latest MaxTime among every selected revision carrying that tag — the
// same "last writer wins" rule as CvsConv.walk's
// `if t not in self.tags or self.tags[t].max_time < a.max_time`.
type Index struct {
	winners map[string]*changeset.Key
}

// New returns an empty Index.
func New() *Index {
	return &Index{winners: map[string]*changeset.Key{}}
}

// Put records that tag applies to revision k (a single selected
// revision's resolved changeset key, already merged into its final
// Clusterer changeset by the time Finalize is called).
func (x *Index) Put(tag string, k *changeset.Key) {
	w, ok := x.winners[tag]
	if !ok || w.MaxTime < k.MaxTime {
		x.winners[tag] = k
	}
}

// Finalize appends every tag name to the Tags slice of the changeset.Key
// that won it, matching the walk()-time
// `for t, c in list(self.tags.items()): c.tags.append(t)` pass. Call
// this once, after every file has been walked and every changeset has
// been through its final Clusterer merge, since Put may have recorded a
// Key that was since absorbed into a different surviving Key by
// changeset.Clusterer.Put. resolve maps a possibly-stale Key pointer to
// its current surviving Key (identity if it was never merged away).
func (x *Index) Finalize(resolve func(*changeset.Key) *changeset.Key) {
	for tag, k := range x.winners {
		surviving := k
		if resolve != nil {
			surviving = resolve(k)
		}
		surviving.Tags = append(surviving.Tags, tag)
	}
}

// ResumeState tracks an incremental dump's scan across the
// already-emitted prefix of the ordered changeset sequence: every tag
// attached to a changeset skipped before the matching tip revision is
// found must not be re-emitted, since a previous incremental run already
// pushed it.
type ResumeState struct {
	tipTime    int64
	tipAuthor  string
	found      bool
	excluded   map[string]struct{}
}

// NewResumeState begins a scan for the changeset matching
// (tipTime, tipAuthor) — the min_time/author of the last revision a
// prior incremental run committed.
func NewResumeState(tipTime int64, tipAuthor string) *ResumeState {
	return &ResumeState{tipTime: tipTime, tipAuthor: tipAuthor, excluded: map[string]struct{}{}}
}

// Observe is called once per changeset in ascending emission order while
// found_last_revision has not yet gone true. It records the changeset's
// tags into the excluded set and reports whether this changeset was the
// tip match (emission should resume on the NEXT changeset, matching
// main()'s own `continue` after setting found_last_revision).
func (r *ResumeState) Observe(k *changeset.Key) (matchedTip bool) {
	if r.found {
		return false
	}
	if k.MinTime == r.tipTime && k.Author == r.tipAuthor {
		r.found = true
		matchedTip = true
	}
	for _, t := range k.Tags {
		r.excluded[t] = struct{}{}
	}
	return matchedTip
}

// Found reports whether the tip revision was located during the scan.
// An incremental dump that never finds it is a fatal error, matching
// main()'s `raise Exception('could not find the last revision')`.
func (r *ResumeState) Found() bool { return r.found }

// Excluded reports whether tag was already emitted by a prior
// incremental run and should be skipped on this one.
func (r *ResumeState) Excluded(tag string) bool {
	_, ok := r.excluded[tag]
	return ok
}
