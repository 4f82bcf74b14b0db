package probe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSvnProberTip(t *testing.T) {
	p := &SvnProber{repoPath: "/repos/example", runner: func(name string, args ...string) ([]byte, error) {
		switch {
		case name == "svnlook" && len(args) > 0 && args[0] == "youngest":
			return []byte("42\n"), nil
		case name == "svnlook" && len(args) > 0 && args[0] == "info":
			return []byte("alice\n2024-05-06 12:30:00 +0000 (Mon, 06 May 2024)\n5\nlog message\n"), nil
		default:
			t.Fatalf("unexpected command %s %v", name, args)
			return nil, nil
		}
	}}

	tip, err := p.Tip()
	if err != nil {
		t.Fatalf("Tip failed: %v", err)
	}
	assert.Equal(t, "alice", tip.Author)
	assert.True(t, tip.Time > 0)
}

func TestSvnProberYoungestFailure(t *testing.T) {
	p := &SvnProber{repoPath: "/repos/example", runner: func(name string, args ...string) ([]byte, error) {
		return nil, assertErr("boom")
	}}
	_, err := p.Tip()
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "svnlook youngest"))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestSvnProberListPaths(t *testing.T) {
	p := &SvnProber{repoPath: "/repos/example", runner: func(name string, args ...string) ([]byte, error) {
		return []byte("/\n" +
			"trunk/\n" +
			"trunk/src/\n" +
			"trunk/src/main.c\n" +
			"trunk/README\n"), nil
	}}

	tree, err := p.ListPaths(42)
	if err != nil {
		t.Fatalf("ListPaths failed: %v", err)
	}
	assert.Equal(t, []string{"trunk", "trunk/src"}, tree.Dirs)
	assert.Equal(t, []string{"trunk/src/main.c", "trunk/README"}, tree.Files)
}
