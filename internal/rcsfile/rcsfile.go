// Package rcsfile parses RCS ",v" history files.
//
// This plays the role spec.md calls the "RCS file accessor": given the path
// to one ,v file it exposes the symbolic-name table, the revision table,
// the declared keyword-expansion mode, log message retrieval and full-text
// checkout of any revision. No third-party RCS parsing library appears
// anywhere in the retrieval pack, so this is implemented directly against
// the RCS file format, grounded on the semantics of yasuoka/cvs2gitdump's
// rcsparse dependency (see original_source/cvs2gitdump.py).
package rcsfile

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Delta is one entry from an RCS file's revision tree (the "delta admin"
// block). It carries everything the selector needs except the checked-out
// text, which is reconstructed lazily.
type Delta struct {
	Rev      string
	Date     time.Time
	Author   string
	State    string
	Branches []string // branch-head revisions rooted here
	Next     string   // predecessor on this delta's own line (trunk: next-lower trunk rev)
	CommitID string   // optional, from the "commitid" newphrase
}

// RCSFile is a parsed ,v file.
type RCSFile struct {
	Path    string
	Head    string
	Branch  string            // default branch, from the "branch" header, may be empty
	Symbols map[string]string // tag name -> dotted revision number
	Expand  string            // raw expand mode string, e.g. "kv", "b"; "" means default (kv)
	Deltas  map[string]*Delta // rev -> delta admin

	logs  map[string]string // rev -> raw log message bytes (as string)
	texts map[string]string // rev -> deltatext (full text at Head, ed-script diff elsewhere)

	checkoutCache map[string]string
}

var revNumberRe = regexp.MustCompile(`^\d+(\.\d+)+$`)

func isRevNumber(s string) bool {
	return revNumberRe.MatchString(s)
}

// Parse reads and parses one ,v file.
func Parse(path string) (*RCSFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rcsfile: read %s: %w", path, err)
	}
	f := &RCSFile{
		Path:    path,
		Symbols: map[string]string{},
		Deltas:  map[string]*Delta{},
		logs:    map[string]string{},
		texts:   map[string]string{},
	}
	s := newScanner(data)
	if err := f.parseAdmin(s); err != nil {
		return nil, fmt.Errorf("rcsfile: %s: %w", path, err)
	}
	if err := f.parseDeltaTexts(s); err != nil {
		return nil, fmt.Errorf("rcsfile: %s: %w", path, err)
	}
	return f, nil
}

func (f *RCSFile) parseAdmin(s *scanner) error {
	for {
		tok, isAt, err := s.next()
		if err != nil {
			return err
		}
		if isAt {
			return fmt.Errorf("unexpected string literal in admin section")
		}
		switch tok {
		case "head":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			f.Head = strings.TrimSpace(v)
		case "branch":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			f.Branch = strings.TrimSpace(v)
		case "access":
			if _, err := s.nextUntilSemi(); err != nil {
				return err
			}
		case "symbols":
			if err := f.parseSymbols(s); err != nil {
				return err
			}
		case "locks":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			_ = v
			// optional "strict;" follows
			if w, _, err := s.peekWord(); err == nil && w == "strict" {
				s.next()
				if _, err := s.nextUntilSemi(); err != nil {
					return err
				}
			}
		case "comment":
			if _, err := s.nextAtString(); err != nil {
				return err
			}
			if _, err := s.nextUntilSemi(); err != nil {
				return err
			}
		case "expand":
			v, err := s.nextAtString()
			if err != nil {
				return err
			}
			f.Expand = v
			if _, err := s.nextUntilSemi(); err != nil {
				return err
			}
		case "desc":
			// admin section ends; "desc" owns the repository description string
			if _, err := s.nextAtString(); err != nil {
				return err
			}
			return nil
		default:
			if isRevNumber(tok) {
				if err := f.parseDeltaAdmin(s, tok); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("unexpected admin token %q", tok)
		}
	}
}

func (f *RCSFile) parseSymbols(s *scanner) error {
	for {
		tok, isAt, err := s.next()
		if err != nil {
			return err
		}
		if isAt {
			return fmt.Errorf("unexpected string literal in symbols section")
		}
		if tok == ";" {
			return nil
		}
		parts := strings.SplitN(tok, ":", 2)
		if len(parts) == 2 {
			f.Symbols[parts[0]] = parts[1]
		}
	}
}

func (f *RCSFile) parseDeltaAdmin(s *scanner, rev string) error {
	d := &Delta{Rev: rev}
	for {
		tok, isAt, err := s.next()
		if err != nil {
			return err
		}
		if isAt {
			return fmt.Errorf("unexpected string in delta admin for %s", rev)
		}
		switch tok {
		case "date":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			d.Date, err = parseRCSDate(strings.TrimSpace(v))
			if err != nil {
				return err
			}
		case "author":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			d.Author = strings.TrimSpace(v)
		case "state":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			d.State = strings.TrimSpace(v)
			if d.State == "" {
				d.State = "Exp"
			}
		case "branches":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			for _, b := range strings.Fields(v) {
				d.Branches = append(d.Branches, strings.TrimSpace(b))
			}
		case "next":
			v, err := s.nextUntilSemi()
			if err != nil {
				return err
			}
			d.Next = strings.TrimSpace(v)
			f.Deltas[rev] = d
			return f.parseNewphrases(s, d)
		default:
			return fmt.Errorf("unexpected delta admin field %q for %s", tok, rev)
		}
	}
}

// parseNewphrases consumes any vendor-defined newphrases (most commonly
// "commitid <token>;") that trail a delta-admin block, stopping once the
// next revision number or "desc" keyword is seen.
func (f *RCSFile) parseNewphrases(s *scanner, d *Delta) error {
	for {
		w, isAt, err := s.peekWord()
		if err != nil {
			return err
		}
		if isAt {
			return nil
		}
		if w == "desc" || isRevNumber(w) {
			return nil
		}
		tok, _, err := s.next()
		if err != nil {
			return err
		}
		v, err := s.nextUntilSemi()
		if err != nil {
			return err
		}
		if tok == "commitid" {
			d.CommitID = strings.TrimSpace(v)
		}
	}
}

func (f *RCSFile) parseDeltaTexts(s *scanner) error {
	for {
		tok, isAt, eof, err := s.nextMaybeEOF()
		if err != nil {
			return err
		}
		if eof {
			return nil
		}
		if isAt || !isRevNumber(tok) {
			return fmt.Errorf("expected revision number in deltatext section, got %q", tok)
		}
		rev := tok
		kw, _, err := s.next()
		if err != nil {
			return err
		}
		if kw != "log" {
			return fmt.Errorf("expected 'log' for revision %s, got %q", rev, kw)
		}
		log, err := s.nextAtString()
		if err != nil {
			return err
		}
		f.logs[rev] = log
		// skip any newphrases (e.g. "text" is required; nothing else usually
		// appears here, but be defensive)
		for {
			w, _, err := s.peekWord()
			if err != nil {
				return err
			}
			if w == "text" {
				break
			}
			if _, _, err := s.next(); err != nil {
				return err
			}
			if _, err := s.nextUntilSemi(); err != nil {
				return err
			}
		}
		if _, _, err := s.next(); err != nil { // consume "text"
			return err
		}
		text, err := s.nextAtString()
		if err != nil {
			return err
		}
		f.texts[rev] = text
	}
}

// GetLog returns the raw log-message bytes recorded for rev.
func (f *RCSFile) GetLog(rev string) ([]byte, error) {
	l, ok := f.logs[rev]
	if !ok {
		return nil, fmt.Errorf("rcsfile: no log for revision %s", rev)
	}
	return []byte(l), nil
}

// Checkout reconstructs the full text of rev.
//
// RCS stores the head revision verbatim and every other revision as an
// ed-style diff against its neighbour in the delta chain. This spec's
// selector only ever walks the trunk (1.N) and the vendor branch
// (1.1.1.N) — see spec.md §9 "Vendor branch model" — so Checkout only
// needs to resolve those two chains, not arbitrary named branches.
func (f *RCSFile) Checkout(rev string) ([]byte, error) {
	if f.checkoutCache == nil {
		f.checkoutCache = map[string]string{}
	}
	if c, ok := f.checkoutCache[rev]; ok {
		return []byte(c), nil
	}
	chain, err := f.chainToHead(rev)
	if err != nil {
		return nil, err
	}
	raw, ok := f.texts[f.Head]
	if !ok {
		return nil, fmt.Errorf("rcsfile: no text for head revision %s", f.Head)
	}
	text := strings.Join(splitKeepNone(raw), "\n")
	endsWithNewline := strings.HasSuffix(raw, "\n")
	// chain is in head-to-rev walking order, which is also the order diffs
	// must be applied: chain[0] takes the head text to the next step down,
	// and so on until chain[last] produces rev's text.
	cur := f.Head
	for _, next := range chain {
		diff, ok := f.texts[next]
		if !ok {
			return nil, fmt.Errorf("rcsfile: no deltatext for revision %s", next)
		}
		text, endsWithNewline, err = applyEdScript(text, diff, endsWithNewline)
		if err != nil {
			return nil, fmt.Errorf("rcsfile: applying diff %s->%s: %w", cur, next, err)
		}
		cur = next
	}
	if endsWithNewline {
		text += "\n"
	}
	f.checkoutCache[rev] = text
	return []byte(text), nil
}

// chainToHead returns the sequence of revisions from Head down to rev
// (exclusive of Head, inclusive of rev), in the order diffs must be
// applied starting from Head's full text.
func (f *RCSFile) chainToHead(rev string) ([]string, error) {
	if rev == f.Head {
		return nil, nil
	}
	// Trunk case: walk down via Next from Head until rev is reached.
	chain := []string{}
	cur := f.Head
	for cur != rev {
		d, ok := f.Deltas[cur]
		if !ok {
			return nil, fmt.Errorf("rcsfile: missing delta for %s while resolving %s", cur, rev)
		}
		if d.Next != "" {
			chain = append(chain, d.Next)
			cur = d.Next
			continue
		}
		// Reached the end of the trunk chain without finding rev: the
		// target must hang off a branch rooted at one of the deltas we
		// passed through (the vendor branch, 1.1.1.*).
		return f.branchChain(rev)
	}
	return chain, nil
}

// branchChain resolves a revision that lives on a single-level branch
// (vendor import line) rather than the trunk. Branch deltatexts are
// diffs applied forward from the branch root's text, so the chain is the
// root's own chain from Head followed by the branch revisions from the
// branch's first revision forward to rev via Next pointers.
func (f *RCSFile) branchChain(rev string) ([]string, error) {
	// The branch root is rev's number with its last two components
	// dropped (1.1.1.3 -> 1.1).
	parts := strings.Split(rev, ".")
	if len(parts) < 4 {
		return nil, fmt.Errorf("rcsfile: revision %s not reachable from head %s", rev, f.Head)
	}
	branchRoot := strings.Join(parts[:len(parts)-2], ".")
	// Walk the branch from its first revision down to rev, collecting the
	// revisions whose deltatexts must be applied in order, starting from
	// the root's checked-out text.
	first := strings.Join(append(append([]string{}, parts[:len(parts)-1]...), "1"), ".")
	chain := []string{}
	cur := first
	for {
		chain = append(chain, cur)
		if cur == rev {
			break
		}
		d, ok := f.Deltas[cur]
		if !ok || d.Next == "" {
			return nil, fmt.Errorf("rcsfile: revision %s not reachable on branch from %s", rev, first)
		}
		cur = d.Next
	}
	rootChain, err := f.chainToHead(branchRoot)
	if err != nil {
		return nil, err
	}
	return append(rootChain, chain...), nil
}

// IsExecutable reports whether the ,v file itself (f.Path) has any of
// its owner/group/other execute bits set, the same file cvs2gitdump's
// os.access check looks at.
func (f *RCSFile) IsExecutable() bool {
	info, err := os.Stat(f.Path)
	if err != nil {
		return false
	}
	return info.Mode()&0111 != 0
}

// Revisions returns all revision numbers recorded in the delta table.
func (f *RCSFile) Revisions() []string {
	out := make([]string, 0, len(f.Deltas))
	for r := range f.Deltas {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func parseRCSDate(s string) (time.Time, error) {
	// RCS dates are "YY.MM.DD.HH.MM.SS" (or "YYYY.MM.DD.HH.MM.SS" after the
	// Y2K fix); both are always UTC.
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return time.Time{}, fmt.Errorf("malformed RCS date %q", s)
	}
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed RCS date %q: %w", s, err)
		}
		nums[i] = n
	}
	year := nums[0]
	if year < 100 {
		if year < 69 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return time.Date(year, time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC), nil
}

// applyEdScript applies an RCS deltatext (a restricted "ed" script of "a"
// (append) and "d" (delete) commands, one-indexed against the *original*
// line numbering) to text, returning the result.
// applyEdScript applies one RCS ed-style deltatext script to text,
// returning the resulting text and whether it ends in a newline.
// textEndsWithNewline must say whether text itself ended in a newline
// before splitting it into lines, so that a delete or a no-op run to
// the original last line reproduces that same trailing-newline state
// (line-splitting a string with stdlib strings.Split discards it
// irrecoverably, which is why it has to be threaded through as its own
// flag rather than re-derived from text).
func applyEdScript(text, script string, textEndsWithNewline bool) (string, bool, error) {
	srcLines := splitKeepNone(text)
	lastOriginalIdx := len(srcLines) - 1

	var cmdLines []string
	scriptEndsWithNewline := false
	if script != "" {
		scriptEndsWithNewline = strings.HasSuffix(script, "\n")
		cmdLines = strings.Split(script, "\n")
		if len(cmdLines) > 0 && cmdLines[len(cmdLines)-1] == "" {
			cmdLines = cmdLines[:len(cmdLines)-1]
		}
	}

	out := make([]string, 0, len(srcLines))
	lastAdded := false           // was the most recently appended line an added one?
	lastAddedAtScriptEnd := false // ...and was it the script's own last line?
	lastOrigIdx := -1            // srcLines index of the most recently appended original line

	appendOrig := func(idx int) {
		out = append(out, srcLines[idx])
		lastAdded = false
		lastOrigIdx = idx
	}
	appendAdded := func(line string, atScriptEnd bool) {
		out = append(out, line)
		lastAdded = true
		lastAddedAtScriptEnd = atScriptEnd
	}

	srcIdx := 0 // 0-based index into srcLines of the next untouched original line
	i := 0
	for i < len(cmdLines) {
		cmd := cmdLines[i]
		i++
		if cmd == "" {
			continue
		}
		fields := strings.Fields(cmd)
		if len(fields) != 3 {
			return "", false, fmt.Errorf("malformed ed command %q", cmd)
		}
		op := fields[0]
		lineno, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", false, fmt.Errorf("malformed ed command %q: %w", cmd, err)
		}
		count, err := strconv.Atoi(fields[2])
		if err != nil {
			return "", false, fmt.Errorf("malformed ed command %q: %w", cmd, err)
		}
		switch op {
		case "d":
			for srcIdx < lineno-1 {
				appendOrig(srcIdx)
				srcIdx++
			}
			srcIdx += count
		case "a":
			for srcIdx < lineno {
				appendOrig(srcIdx)
				srcIdx++
			}
			for j := 0; j < count && i < len(cmdLines); j++ {
				appendAdded(cmdLines[i], i+1 == len(cmdLines))
				i++
			}
		default:
			return "", false, fmt.Errorf("unknown ed command %q", op)
		}
	}
	for srcIdx < len(srcLines) {
		appendOrig(srcIdx)
		srcIdx++
	}

	var endsWithNewline bool
	switch {
	case len(out) == 0:
		endsWithNewline = false
	case lastAdded:
		if lastAddedAtScriptEnd {
			endsWithNewline = scriptEndsWithNewline
		} else {
			endsWithNewline = true
		}
	case lastOrigIdx == lastOriginalIdx:
		endsWithNewline = textEndsWithNewline
	default:
		endsWithNewline = true
	}

	return strings.Join(out, "\n"), endsWithNewline, nil
}

func splitKeepNone(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
