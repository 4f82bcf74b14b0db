package ingest

import (
	"sort"

	"github.com/rcowham/cvs2git/internal/changeset"
	"github.com/rcowham/cvs2git/internal/selector"
	"github.com/rcowham/cvs2git/internal/tagindex"
)

// Consume drains results on the single consumer goroutine required by
// the clustering design: one changeset.Clusterer, fed revision by
// revision, never touched concurrently. It also attributes tags as each
// revision lands, via tagindex.Index, and returns the first parse/walk
// error encountered (consumption continues to drain the channel so
// producer goroutines never block on a send after an error, but the
// error is reported once draining completes).
//
// Walker's pond pool delivers results in worker-completion order, which
// varies run to run. changeset.Compare is intentionally non-transitive
// (two keys can each compare "equal" to a third without comparing equal
// to each other), so the merge-and-requery clustering loop is sensitive
// to the order keys are first Put — feeding it in arrival order would
// make the resulting grouping, and therefore the whole emitted stream,
// nondeterministic across runs over the same tree. Consume instead
// drains the channel fully and sorts into one canonical order before
// any Put, the same determinism os.walk's single-threaded traversal
// order gave the Python original for free.
func Consume(results <-chan Result, fuzzSec int64, markSeq *int) (*changeset.Clusterer, *tagindex.Index, error) {
	clusterer := changeset.NewClusterer()
	tags := tagindex.New()
	var firstErr error

	var selected []selector.Selected
	for r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		selected = append(selected, r.Selected)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.Rev != b.Rev {
			return a.Rev < b.Rev
		}
		return a.Path < b.Path
	})

	for _, s := range selected {
		k := selector.ToChangesetKey(s, fuzzSec)
		*markSeq++
		k.PutFile(s.Path, s.Rev, s.State, *markSeq)
		clusterer.Put(k)

		for _, t := range s.Tags {
			tags.Put(t, k)
		}
	}

	// Clustering may have merged a tag's winning key into another key
	// after tags.Put recorded it; resolve every winner to its surviving
	// Key before handing the index to callers.
	tags.Finalize(func(k *changeset.Key) *changeset.Key { return k.Resolve() })

	return clusterer, tags, firstErr
}
