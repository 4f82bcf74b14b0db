// Package content reopens a single RCS file at emission time to produce
// one revision's keyword-expanded blob bytes and executable bit. The
// ingest walk consumes each ,v file only far enough to select revisions
// for clustering; retaining every revision's checked-out text across an
// entire run would violate the engine's memory budget (open-changeset
// set, tag index, mark counter — nothing else), so content is recovered
// by reopening the file once per FileRevision actually emitted.
package content

import (
	"fmt"

	"github.com/rcowham/cvs2git/internal/keyword"
	"github.com/rcowham/cvs2git/internal/rcsfile"
)

// Loaded is one revision's recovered blob content.
type Loaded struct {
	Data       []byte
	Executable bool
}

// Load reopens path, checks out rev, expands its RCS keywords via
// expander, and reports whether the ,v file is executable.
func Load(path, rev string, expander *keyword.Expander) (Loaded, error) {
	f, err := rcsfile.Parse(path)
	if err != nil {
		return Loaded{}, fmt.Errorf("content: reopen %s: %w", path, err)
	}
	data, err := expander.Expand(f, path, rev)
	if err != nil {
		return Loaded{}, fmt.Errorf("content: expand %s@%s: %w", path, rev, err)
	}
	return Loaded{Data: data, Executable: f.IsExecutable()}, nil
}

// LoadLog reopens path and returns rev's raw log message bytes, the way
// main()'s own `rcsparse.rcsfile(k.revs[0].path).getlog(k.revs[0].rev)`
// reopens the first FileRevision of a changeset purely to recover its
// commit message at emission time (ChangesetKey never retains the log
// text itself, only its hash, once clustering is done).
func LoadLog(path, rev string) ([]byte, error) {
	f, err := rcsfile.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("content: reopen %s: %w", path, err)
	}
	log, err := f.GetLog(rev)
	if err != nil {
		return nil, fmt.Errorf("content: log %s@%s: %w", path, rev, err)
	}
	return log, nil
}
