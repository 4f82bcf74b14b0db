package emit

import (
	"fmt"
	"io"
)

// FastImportWriter emits a git fast-import stream, the same
// os.Create/Fprintf/panic-on-I/O-error idiom as journal.Journal, adapted
// to this engine's output instead of a Perforce journal dump.
type FastImportWriter struct {
	w io.Writer
}

// NewFastImportWriter wraps w (typically an in-memory buffer, so the
// caller can discard it on a fatal error before anything reaches the
// real stdout) as a FastImportWriter.
func NewFastImportWriter(w io.Writer) *FastImportWriter {
	return &FastImportWriter{w: w}
}

func (fw *FastImportWriter) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(fw.w, format, args...); err != nil {
		panic(err)
	}
}

// WriteBlob emits a "blob"/"mark"/"data" record.
func (fw *FastImportWriter) WriteBlob(mark int, data []byte) {
	fw.printf("blob\n")
	fw.printf("mark :%d\n", mark)
	fw.printf("data %d\n", len(data))
	if _, err := fw.w.Write(data); err != nil {
		panic(err)
	}
	fw.printf("\n")
}

// FileOp is one path-level effect of a commit: either a delete (Dead) or
// a content reference at Mark with the given mode.
type FileOp struct {
	Path string
	Dead bool
	Mode string // "100644" or "100755"; ignored when Dead
	Mark int
}

// CommitOptions carries everything WriteCommit needs beyond the file
// ops: author identity, commit message, and the from-target used to
// chain onto a prior incremental run's tip. FromRef (a raw git commit
// id, matching cvs2gitdump.py's "from <git_tip>" using a hash rather
// than a mark) takes precedence over FromMark when both are set; an
// incremental run sets FromRef on the very first commit it emits, to
// anchor new history onto the target branch's existing tip, and leaves
// both unset on every commit after that.
type CommitOptions struct {
	Branch       string
	Mark         int
	Author       string
	Email        string
	TimestampUTC int64
	Log          []byte
	FromMark     *int
	FromRef      string
	Ops          []FileOp
}

// WriteCommit emits one "commit"/"mark"/author+committer/"data"/file-ops
// block, using min_time for both author and committer time (the stable
// choice across merges, per the ordering design).
func (fw *FastImportWriter) WriteCommit(opts CommitOptions) {
	fw.printf("commit refs/heads/%s\n", opts.Branch)
	fw.printf("mark :%d\n", opts.Mark)
	fw.printf("author %s <%s> %d +0000\n", opts.Author, opts.Email, opts.TimestampUTC)
	fw.printf("committer %s <%s> %d +0000\n", opts.Author, opts.Email, opts.TimestampUTC)
	fw.printf("data %d\n", len(opts.Log))
	if _, err := fw.w.Write(opts.Log); err != nil {
		panic(err)
	}
	fw.printf("\n")
	if opts.FromRef != "" {
		fw.printf("from %s\n", opts.FromRef)
	} else if opts.FromMark != nil {
		fw.printf("from :%d\n", *opts.FromMark)
	}
	for _, op := range opts.Ops {
		if op.Dead {
			fw.printf("D %s\n", op.Path)
		} else {
			fw.printf("M %s :%d %s\n", op.Mode, op.Mark, op.Path)
		}
	}
	fw.printf("\n")
}

// WriteTag emits a "reset refs/tags/<name>" record pointing at mark.
func (fw *FastImportWriter) WriteTag(name string, mark int) {
	fw.printf("reset refs/tags/%s\n", name)
	fw.printf("from :%d\n", mark)
	fw.printf("\n")
}
