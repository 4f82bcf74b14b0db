// Package changeset implements the ChangesetKey equivalence relation and
// the merge-and-requery clusterer that groups per-file CVS revisions into
// changesets, translated directly from original_source/cvs2gitdump.py's
// ChangeSetKey/CvsConv.changesets logic (the spec's "core algorithm").
package changeset

import "sort"

// FileRevision is one selected revision of one file, queued for
// inclusion in whatever changeset its ChangesetKey resolves to.
type FileRevision struct {
	Path    string
	Rev     string
	State   string
	MarkSeq int
}

// Key is the clustering key for one candidate changeset: a single file
// revision's (branch, author, time, log, commitid) tuple before it has
// been merged with any other revision that belongs to the same commit.
type Key struct {
	Branch   string
	Author   string
	MinTime  int64
	MaxTime  int64
	CommitID *string
	FuzzSec  int64
	LogHash  uint32

	Revs []FileRevision
	Tags []string

	mergedInto *Key // forwarding pointer, set once this Key is absorbed by Clusterer.Put
}

// Resolve follows mergedInto forwarding pointers to the Key that
// ultimately survived clustering. Callers that captured a *Key before
// it was (possibly) later merged away — such as tagindex.Index, which
// records a tag's winning changeset as revisions are ingested — must
// call Resolve once ingestion is complete to land on the right Key.
func (k *Key) Resolve() *Key {
	for k.mergedInto != nil {
		k = k.mergedInto
	}
	return k
}

// NewKey builds a Key for a single file revision. log is the raw,
// not-yet-decoded log message bytes (hashed byte for byte, matching the
// Python original's `for c in log: h = 31*h+c` loop).
func NewKey(branch, author string, timestamp int64, log []byte, commitID *string, fuzzSec int64) *Key {
	var h uint32
	for _, c := range log {
		h = 31*h + uint32(c)
	}
	return &Key{
		Branch:   branch,
		Author:   author,
		MinTime:  timestamp,
		MaxTime:  timestamp,
		CommitID: commitID,
		FuzzSec:  fuzzSec,
		LogHash:  h,
	}
}

// PutFile records a selected file revision against this key.
func (k *Key) PutFile(path, rev, state string, markSeq int) {
	k.Revs = append(k.Revs, FileRevision{Path: path, Rev: rev, State: state, MarkSeq: markSeq})
}

// Merge absorbs another key's revisions into k (k is the surviving,
// already-clustered entry).
func (k *Key) Merge(other *Key) {
	if other.MaxTime > k.MaxTime {
		k.MaxTime = other.MaxTime
	}
	if other.MinTime < k.MinTime {
		k.MinTime = other.MinTime
	}
	k.Revs = append(k.Revs, other.Revs...)
}

// cmpNullable orders two optional commit-id strings the way
// cvs2gitdump.py's _cmp2 does: both present compares the strings, any
// asymmetric presence treats "present" as greater than "absent".
func cmpNullable(a, b *string) int {
	switch {
	case a != nil && b != nil:
		switch {
		case *a < *b:
			return -1
		case *a > *b:
			return 1
		default:
			return 0
		}
	case a == nil && b == nil:
		return 0
	case a != nil:
		return 1
	default:
		return -1
	}
}

func sign64(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Compare implements the non-transitive equivalence relation: zero means
// "belongs to the same changeset", nonzero gives a total-order tiebreak
// used only for sorting, never for equivalence decisions beyond zero.
//
// Mirrors ChangeSetKey._cmp: commitid match short-circuits to equal; a
// time-window gap bigger than fuzz forces inequality ordered by the
// midpoint delta; a one-sided or conflicting commitid orders by midpoint
// (falling back to the commitid sign on an exact midpoint tie); otherwise
// equality falls to (log hash, branch, author), ordered by midpoint (or
// the first differing component) when not all three match.
func (k *Key) Compare(other *Key) int {
	cid := cmpNullable(k.CommitID, other.CommitID)
	if cid == 0 && k.CommitID != nil {
		return 0
	}

	ma := other.MinTime - k.MaxTime
	mi := k.MinTime - other.MaxTime
	ct := k.MinTime - other.MinTime

	if ma > k.FuzzSec || mi > k.FuzzSec {
		return sign64(ct)
	}

	if cid != 0 {
		if ct == 0 {
			return cid
		}
		return sign64(ct)
	}

	c := 0
	switch {
	case k.LogHash < other.LogHash:
		c = -1
	case k.LogHash > other.LogHash:
		c = 1
	}
	if c == 0 {
		switch {
		case k.Branch < other.Branch:
			c = -1
		case k.Branch > other.Branch:
			c = 1
		}
	}
	if c == 0 {
		switch {
		case k.Author < other.Author:
			c = -1
		case k.Author > other.Author:
			c = 1
		}
	}
	if c == 0 {
		return 0
	}
	if ct != 0 {
		return sign64(ct)
	}
	return c
}

// Equal reports whether k and other belong to the same changeset.
func (k *Key) Equal(other *Key) bool { return k.Compare(other) == 0 }

// Less orders two keys for final output sequencing.
func (k *Key) Less(other *Key) bool { return k.Compare(other) < 0 }

// Clusterer groups FileRevisions into changesets as they're produced by
// the file walk, one call to Put per selected revision. Because Compare
// is not transitive, a naive single hash-bucket lookup can miss an
// existing match; Put follows cvs2gitdump.py's own
// "while a in self.changesets: merge; requery" loop: after merging into
// a bucket, it requeries with the merged (wider-reaching) key in case
// the merge now also overlaps a second, previously distinct bucket.
type Clusterer struct {
	buckets map[string][]*Key
	order   []*Key
}

// NewClusterer returns an empty Clusterer.
func NewClusterer() *Clusterer {
	return &Clusterer{buckets: map[string][]*Key{}}
}

func bucketName(k *Key) string {
	return k.Branch + "/" + k.Author
}

// Put inserts or merges a Key into the clusterer's changeset set.
func (c *Clusterer) Put(k *Key) {
	a := k
	for {
		name := bucketName(a)
		bucket := c.buckets[name]
		idx := -1
		for i, existing := range bucket {
			if existing.Equal(a) {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		existing := bucket[idx]
		c.buckets[name] = append(bucket[:idx], bucket[idx+1:]...)
		c.removeFromOrder(existing)
		existing.Merge(a)
		a.mergedInto = existing
		a = existing
	}
	name := bucketName(a)
	c.buckets[name] = append(c.buckets[name], a)
	c.order = append(c.order, a)
}

func (c *Clusterer) removeFromOrder(k *Key) {
	for i, e := range c.order {
		if e == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Changesets returns every distinct changeset accumulated so far, sorted
// ascending by Compare (which doubles as the final emission order).
func (c *Clusterer) Changesets() []*Key {
	out := make([]*Key, len(c.order))
	copy(out, c.order)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
