package probe

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// SvnProber resolves an existing SVN repository's tip author/time by
// shelling out to svnlook, the dump dialect's analog of GitProber — no
// Go SVN binding exists anywhere in the retrieval pack, so this is the
// one ambient concern in the engine built without a pack library.
type SvnProber struct {
	repoPath string
	runner   func(name string, args ...string) ([]byte, error)
}

// NewSvnProber returns a prober for the SVN repository at repoPath
// (a filesystem path to the repository, not a checkout).
func NewSvnProber(repoPath string) *SvnProber {
	return &SvnProber{repoPath: repoPath, runner: runCommand}
}

func runCommand(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, out.String())
	}
	return out.Bytes(), nil
}

// Tip resolves the youngest revision's author and committed-date via
// `svnlook youngest` followed by `svnlook info -r <rev>`.
func (p *SvnProber) Tip() (Tip, error) {
	out, err := p.runner("svnlook", "youngest", p.repoPath)
	if err != nil {
		return Tip{}, fmt.Errorf("probe: svnlook youngest: %w", err)
	}
	rev := strings.TrimSpace(string(out))
	youngest, err := strconv.Atoi(rev)
	if err != nil {
		return Tip{}, fmt.Errorf("probe: unexpected svnlook youngest output %q", rev)
	}

	out, err = p.runner("svnlook", "info", "-r", rev, p.repoPath)
	if err != nil {
		return Tip{}, fmt.Errorf("probe: svnlook info: %w", err)
	}
	// `svnlook info` prints: author, date, log-length, then the log
	// message, one field per line.
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) < 2 {
		return Tip{}, fmt.Errorf("probe: unexpected svnlook info output for revision %s", rev)
	}
	author := lines[0]
	t, err := time.Parse("2006-01-02 15:04:05 -0700 (Mon, 02 Jan 2006)", lines[1])
	if err != nil {
		return Tip{}, fmt.Errorf("probe: parse svnlook date %q: %w", lines[1], err)
	}

	return Tip{Time: t.UTC().Unix(), Author: author, Revision: youngest + 1}, nil
}

// Tree is the existing repository's path layout at a given revision, as
// reported by `svnlook tree`, split into directories and files so an
// incremental dump can seed its pathTree with both before emitting.
type Tree struct {
	Dirs  []string
	Files []string
}

// ListPaths returns every file and directory already present in the
// repository at rev, via `svnlook tree --full-paths`, so an incremental
// dump can seed its pathTree before emitting and tell "add" from
// "change" the way cvs2svndump.py's SvnDumper.load does by walking the
// existing repository with dir_delta before writing a single record.
// Paths are repository-root-relative with no leading slash; a line
// ending in "/" names a directory.
func (p *SvnProber) ListPaths(rev int) (Tree, error) {
	out, err := p.runner("svnlook", "tree", "--full-paths", "-r", strconv.Itoa(rev), p.repoPath)
	if err != nil {
		return Tree{}, fmt.Errorf("probe: svnlook tree: %w", err)
	}
	var tree Tree
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "/") {
			line = strings.TrimSuffix(line, "/")
			if line == "" {
				// the repository root itself
				continue
			}
			tree.Dirs = append(tree.Dirs, line)
			continue
		}
		tree.Files = append(tree.Files, line)
	}
	return tree, nil
}
