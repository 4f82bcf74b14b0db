package emit

import (
	"crypto/md5"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// pathTree tracks which directories and files the dump writer has
// already created, so it can emit implicit "mkdir --parents"/"rmdir"
// records the way cvs2svndump.py's SvnDumper does: a path must be
// explicitly added before it can be changed, and an emptied directory is
// itself removed, recursively up to (but not past) the dump root.
type pathTree struct {
	root  string
	dirs  map[string]map[string]struct{}
	write func(nodePath, kind, action string)
}

func newPathTree(root string, write func(nodePath, kind, action string)) *pathTree {
	root = strings.TrimSuffix(root, "/")
	t := &pathTree{root: root, dirs: map[string]map[string]struct{}{}, write: write}
	t.dirs[root] = map[string]struct{}{}
	return t
}

// dirOf mirrors Python's os.path.dirname, not Go's path.Dir: a path with
// no slash has dirname "" (path.Dir would instead say "."), which matters
// because the dump root is often "" and recursion must bottom out there.
func dirOf(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// Exists reports whether p (file or directory) has already been added.
func (t *pathTree) Exists(p string) bool {
	d := dirOf(p)
	entries, ok := t.dirs[d]
	if !ok {
		return false
	}
	_, ok = entries[path.Base(p)]
	return ok
}

// Add records p as an existing file, creating any missing parent
// directories (emitting "Node-action: add" dir records for each one).
func (t *pathTree) Add(p string) {
	d := dirOf(p)
	if _, ok := t.dirs[d]; !ok {
		t.mkdir(d)
	}
	t.dirs[d][path.Base(p)] = struct{}{}
}

func (t *pathTree) mkdir(p string) {
	if _, ok := t.dirs[p]; ok {
		return
	}
	d := dirOf(p)
	if d == p {
		return
	}
	t.mkdir(d)
	if t.write != nil {
		t.write(p, "dir", "add")
	}
	t.dirs[p] = map[string]struct{}{}
}

// Remove deletes p from its parent directory's entry set and recursively
// removes the parent if it is now empty and has no remaining
// subdirectory, emitting "Node-action: delete" dir records as it unwinds.
func (t *pathTree) Remove(p string) {
	d := dirOf(p)
	if d == p {
		return
	}
	delete(t.dirs[d], path.Base(p))
	t.rmdir(d)
}

func (t *pathTree) rmdir(p string) {
	if p == t.root {
		return
	}
	if len(t.dirs[p]) > 0 {
		return
	}
	for other := range t.dirs {
		if other != p && strings.HasPrefix(other, p+"/") {
			return
		}
	}
	if t.write != nil {
		t.write(p, "dir", "delete")
	}
	delete(t.dirs, p)
	d := dirOf(p)
	if d == p {
		return
	}
	if _, ok := t.dirs[d]; !ok {
		return
	}
	t.rmdir(d)
}

// DumpWriter emits an SVN revision-dump stream (SVN-fs-dump-format-version
// 2), tracking per-path directory existence through a pathTree the way
// cvs2svndump.py's SvnDumper does.
type DumpWriter struct {
	w          io.Writer
	tree       *pathTree
	headerDone bool
}

// NewDumpWriter returns a DumpWriter rooted at svnPath (the destination
// sub-path within the target SVN repository; "" for the repository
// root).
func NewDumpWriter(w io.Writer, svnPath string) *DumpWriter {
	dw := &DumpWriter{w: w}
	dw.tree = newPathTree(svnPath, func(nodePath, kind, action string) {
		dw.printf("Node-path: %s\n", nodePath)
		dw.printf("Node-kind: %s\n", kind)
		dw.printf("Node-action: %s\n\n", action)
	})
	return dw
}

// SeedPaths pre-populates the tree with a target repository's existing
// directories and files, without emitting any node records, so an
// incremental run correctly classifies a pre-existing path as "change"
// (or a delete of it as actually deletable) instead of wrongly treating
// it as new — mirrors cvs2svndump.py's SvnDumper.load walking the
// repository with dir_delta before writing anything.
func (dw *DumpWriter) SeedPaths(dirs, files []string) {
	for _, d := range dirs {
		dw.tree.seedDir(path.Join(dw.tree.root, d))
	}
	for _, f := range files {
		dw.tree.seedFile(path.Join(dw.tree.root, f))
	}
}

func (t *pathTree) seedDir(p string) {
	if _, ok := t.dirs[p]; ok {
		return
	}
	t.dirs[p] = map[string]struct{}{}
}

func (t *pathTree) seedFile(p string) {
	d := dirOf(p)
	if _, ok := t.dirs[d]; !ok {
		t.seedDir(d)
	}
	t.dirs[d][path.Base(p)] = struct{}{}
}

func (dw *DumpWriter) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(dw.w, format, args...); err != nil {
		panic(err)
	}
}

func strProp(k, v string) string {
	return fmt.Sprintf("K %d\n%s\nV %d\n%s\n", len(k), k, len(v), v)
}

// SvnTime formats a Unix timestamp the way svn_time does:
// "YYYY-MM-DDTHH:MM:SS.000000Z".
func SvnTime(t int64) string {
	return time.Unix(t, 0).UTC().Format("2006-01-02T15:04:05.000000Z")
}

// WriteFormatHeader emits the one-time "SVN-fs-dump-format-version: 2"
// preamble; a no-op after the first call (guards against a run that
// withholds every changeset and should produce no header at all — the
// preamble is only emitted lazily, right before the first revision, the
// same way main()'s printOnce guard behaves).
func (dw *DumpWriter) WriteFormatHeader() {
	if dw.headerDone {
		return
	}
	dw.printf("SVN-fs-dump-format-version: 2\n\n")
	dw.headerDone = true
}

// RevisionOptions carries one SVN revision's metadata.
type RevisionOptions struct {
	Number int
	Author string
	Email  string
	Time   int64
	Log    string
}

// WriteRevisionHeader emits the "Revision-number"/property block that
// opens one SVN revision.
func (dw *DumpWriter) WriteRevisionHeader(opts RevisionOptions) {
	revprops := strProp("svn:author", opts.Email) +
		strProp("svn:date", SvnTime(opts.Time)) +
		strProp("svn:log", opts.Log) +
		"PROPS-END\n"
	dw.printf("Revision-number: %d\n", opts.Number)
	dw.printf("Prop-content-length: %d\n", len(revprops))
	dw.printf("Content-length: %d\n\n", len(revprops))
	dw.printf("%s\n", revprops)
}

// WriteFileDelete emits a file-delete node; it is a no-op (with no
// output) if the path doesn't exist in the tree yet, matching
// cvs2svndump.py's own "remove, but it does not exist" warning-and-skip
// behavior — callers should log that case themselves.
func (dw *DumpWriter) WriteFileDelete(nodePath string) (wrote bool) {
	if !dw.tree.Exists(nodePath) {
		return false
	}
	dw.printf("Node-path: %s\n", nodePath)
	dw.printf("Node-kind: file\n")
	dw.printf("Node-action: delete\n\n")
	dw.tree.Remove(nodePath)
	return true
}

// WriteFile emits a file add/change node with its content, deciding
// add-vs-change from the pathTree's existence tracking, and attaching an
// svn:executable property when executable is set.
func (dw *DumpWriter) WriteFile(nodePath string, content []byte, executable bool) {
	action := "change"
	if !dw.tree.Exists(nodePath) {
		dw.tree.Add(nodePath)
		action = "add"
	}

	fileprops := ""
	if executable {
		fileprops += strProp("svn:executable", "*")
	}
	fileprops += "PROPS-END\n"

	sum := md5.Sum(content)

	dw.printf("Node-path: %s\n", nodePath)
	dw.printf("Node-kind: file\n")
	dw.printf("Node-action: %s\n", action)
	dw.printf("Prop-content-length: %d\n", len(fileprops))
	dw.printf("Text-content-length: %d\n", len(content))
	dw.printf("Text-content-md5: %x\n", sum)
	dw.printf("Content-length: %d\n\n", len(fileprops)+len(content))
	dw.printf("%s", fileprops)
	if _, err := dw.w.Write(content); err != nil {
		panic(err)
	}
	dw.printf("\n\n")
}

// NodePath mirrors cvs2svndump.py's node_path: strip the CVS-root
// prefix and trailing ",v", elide an Attic leaf, and prepend the
// destination sub-path within the SVN repository.
func NodePath(cvsRoot, svnSubPath, rcsPath string) string {
	logical := NormalizePath(rcsPath, cvsRoot)
	if svnSubPath == "" {
		return logical
	}
	return svnSubPath + "/" + logical
}
