// Package probe determines an existing target repository's current tip
// (author and timestamp), the anchor an incremental run resumes from.
// The DAG-VCS side is grounded on
// afobsidian-git-migrator/internal/vcs/git/reader.go's NewReader/
// Validate/GetCommits pattern (go-git/go-git/v5); the centralized-VCS
// side has no Go library anywhere in the retrieval pack and shells out
// to svnlook, the way original_source/cvs2svndump.py relies on
// svn's own native bindings at the Python layer.
package probe

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Tip is the resolved author/timestamp of a target repository's current
// head, fed into emit.Tip to anchor an incremental resume scan. Hash is
// the tip commit's id, used to anchor the first emitted commit's "from"
// onto existing history (cvs2gitdump.py's git_tip) rather than a mark.
// Revision is set only by SvnProber, giving the dump dialect the next
// revision number to assign (youngest + 1).
type Tip struct {
	Time     int64
	Author   string
	Hash     string
	Revision int
}

// GitProber opens an existing git repository (the incremental target
// for the fast-import dialect) and resolves its tip commit.
type GitProber struct {
	path string
	repo *gogit.Repository
}

// NewGitProber returns a prober for the git repository at path. The
// repository isn't opened until Tip is called.
func NewGitProber(path string) *GitProber {
	return &GitProber{path: path}
}

func (p *GitProber) open() error {
	if p.repo != nil {
		return nil
	}
	repo, err := gogit.PlainOpen(p.path)
	if err != nil {
		return fmt.Errorf("probe: open git repository at %s: %w", p.path, err)
	}
	p.repo = repo
	return nil
}

// Tip resolves the target repository's head commit's author and
// timestamp. ref, when non-empty, is resolved instead of HEAD —
// supplied from the engine's explicit "-l REV" override
// (cvs2gitdump.py's last_revision handling).
func (p *GitProber) Tip(ref string) (Tip, error) {
	if err := p.open(); err != nil {
		return Tip{}, err
	}

	var hash plumbing.Hash
	if ref == "" {
		head, err := p.repo.Head()
		if err != nil {
			return Tip{}, fmt.Errorf("probe: get HEAD of %s: %w", p.path, err)
		}
		hash = head.Hash()
	} else {
		h, err := p.repo.ResolveRevision(plumbing.Revision(ref))
		if err != nil {
			return Tip{}, fmt.Errorf("probe: resolve revision %q in %s: %w", ref, p.path, err)
		}
		hash = *h
	}

	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return Tip{}, fmt.Errorf("probe: load commit %s: %w", hash, err)
	}

	return Tip{
		Time:   commit.Author.When.UTC().Unix(),
		Author: commit.Author.Name,
		Hash:   hash.String(),
	}, nil
}

// stripEmailDomain removes a trailing "@domain" suffix from an author
// string, matching the engine's own email_domain stripping when
// comparing a probed tip author against a ChangesetKey author (CVS
// authors are bare logins, never "user@domain").
func stripEmailDomain(author, domain string) string {
	if domain == "" {
		return author
	}
	suffix := "@" + domain
	if len(author) > len(suffix) && author[len(author)-len(suffix):] == suffix {
		return author[:len(author)-len(suffix)]
	}
	return author
}

// NormalizeAuthor applies stripEmailDomain and is exported for callers
// (cmd binaries) that need the same normalization the Python originals
// apply before comparing a probed tip's author against a changeset's.
func NormalizeAuthor(author, domain string) string {
	return stripEmailDomain(author, domain)
}
