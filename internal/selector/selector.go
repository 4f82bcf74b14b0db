// Package selector walks one RCS file's revision table and decides which
// revisions belong in the reconstructed history, collapsing the vendor
// branch onto the trunk the way original_source/cvs2gitdump.py's
// CvsConv.parse_file does, and handing each selected revision to a
// changeset.Clusterer.
package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcowham/cvs2git/internal/changeset"
	"github.com/rcowham/cvs2git/internal/rcsfile"
)

// BranchMap resolves a revision's branch-number prefix (the dotted
// number with its last component stripped) to a symbolic branch name.
// Built the same way parse_file seeds its local "branches" dict:
//   - "1" always maps to HEAD, "1.1.1" always maps to VENDOR
//   - any three-component symbol value also maps to VENDOR (a renamed
//     or duplicate vendor branch tag)
//   - a magic-zero branch number (A.B....0.N) collapses to the
//     symbolic name carrying that value, keyed by the equivalent
//     non-magic branch number
type BranchMap map[string]string

// RevisionTag maps a two-component revision (e.g. "1.4") to the tag
// names attached directly to it (only meaningful when the revision's
// single-component branch resolves to HEAD).
type RevisionTag map[string][]string

// BuildBranchMap derives the branch-name table and revision-tag table
// from an RCS file's symbol table, mirroring parse_file's "branches"/
// "rtags" construction exactly.
func BuildBranchMap(f *rcsfile.RCSFile) (BranchMap, RevisionTag) {
	branches := BranchMap{"1": "HEAD", "1.1.1": "VENDOR"}
	rtags := RevisionTag{}

	for sym, rev := range f.Symbols {
		r := strings.Split(rev, ".")
		switch {
		case len(r) == 3:
			branches[rev] = "VENDOR"
		case len(r) >= 3 && r[len(r)-2] == "0":
			collapsed := strings.Join(append(append([]string{}, r[:len(r)-2]...), r[len(r)-1]), ".")
			branches[collapsed] = sym
		}
	}
	for sym, rev := range f.Symbols {
		r := strings.Split(rev, ".")
		if len(r) == 2 && branches[r[0]] == "HEAD" {
			rtags[rev] = append(rtags[rev], sym)
		}
	}
	return branches, rtags
}

// Selected is one revision chosen for inclusion in the reconstructed
// history, with everything selector.Walk needs to feed a changeset.Key.
type Selected struct {
	Path      string
	Rev       string
	Branch    string // resolved symbolic branch name
	Author    string
	Timestamp int64
	State     string
	CommitID  *string
	Log       []byte
	Tags      []string // symbolic names attached directly to this revision, if any
}

// Walk selects revisions from f in the same order and under the same
// vendor-branch-collapse rules as parse_file, calling emit for each one.
// It performs no filesystem access.
func Walk(f *rcsfile.RCSFile, path string, emit func(Selected) error) error {
	branches, rtags := BuildBranchMap(f)

	type entry struct {
		rev   string
		delta *rcsfile.Delta
	}
	entries := make([]entry, 0, len(f.Deltas))
	for rev, d := range f.Deltas {
		entries = append(entries, entry{rev, d})
	}
	// Sort by revision string descending (prioritizes 1.1.1.1 over 1.1
	// at equal timestamps), then stably re-sort by timestamp ascending —
	// matches parse_file's two-pass sorted() calls exactly.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].rev > entries[j].rev })
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].delta.Date.Unix() < entries[j].delta.Date.Unix() })

	novendor := false
	haveInitialRevision := false
	var lastVendorStatus string
	hasLastVendorStatus := false

	for _, e := range entries {
		r := strings.Split(e.rev, ".")
		d := e.delta
		switch {
		case len(r) == 4 && r[0] == "1" && r[1] == "1" && r[2] == "1" && r[3] == "1":
			if haveInitialRevision {
				continue
			}
			if d.State == "dead" {
				continue
			}
			lastVendorStatus, hasLastVendorStatus = d.State, true
			haveInitialRevision = true
		case len(r) == 4 && r[0] == "1" && r[1] == "1" && r[2] == "1":
			if novendor {
				continue
			}
			lastVendorStatus, hasLastVendorStatus = d.State, true
		case len(r) == 2:
			if r[0] == "1" && r[1] == "1" {
				if haveInitialRevision {
					continue
				}
				if d.State == "dead" {
					continue
				}
				haveInitialRevision = true
			} else if r[0] == "1" && r[1] != "1" {
				novendor = true
			}
			if hasLastVendorStatus && lastVendorStatus == "dead" && d.State == "dead" {
				hasLastVendorStatus = false
				continue
			}
			hasLastVendorStatus = false
		default:
			// branch revision deeper than the vendor import: out of
			// scope (non-mainline branch topology is a Non-goal).
			continue
		}

		branchPrefix := strings.Join(r[:len(r)-1], ".")
		branch, ok := branches[branchPrefix]
		if !ok {
			return fmt.Errorf("selector: %s: revision %s has no resolvable branch for prefix %s", path, e.rev, branchPrefix)
		}
		log, err := f.GetLog(e.rev)
		if err != nil {
			return fmt.Errorf("selector: %s: %w", path, err)
		}
		var commitID *string
		if d.CommitID != "" {
			cid := d.CommitID
			commitID = &cid
		}
		if err := emit(Selected{
			Path:      path,
			Rev:       e.rev,
			Branch:    branch,
			Author:    d.Author,
			Timestamp: d.Date.Unix(),
			State:     d.State,
			CommitID:  commitID,
			Log:       log,
			Tags:      rtags[e.rev],
		}); err != nil {
			return err
		}
	}
	return nil
}

// ToChangesetKey builds the clustering key material for one selected
// revision, matching parse_file's ChangeSetKey(...) construction.
func ToChangesetKey(s Selected, fuzzSec int64) *changeset.Key {
	return changeset.NewKey(s.Branch, s.Author, s.Timestamp, s.Log, s.CommitID, fuzzSec)
}
