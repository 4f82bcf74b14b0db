// cvs2git reconstructs a linear changeset history from a CVS/RCS
// repository and writes it to standard output as a git fast-import
// stream, mirroring the teacher's root main.go end to end: flag
// parsing, config load/override, logging, and a buffer-then-validate
// emission pass.
package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/perforce/p4prometheus/version"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/cvs2git/config"
	"github.com/rcowham/cvs2git/internal/changeset"
	"github.com/rcowham/cvs2git/internal/content"
	"github.com/rcowham/cvs2git/internal/emit"
	"github.com/rcowham/cvs2git/internal/ingest"
	"github.com/rcowham/cvs2git/internal/keyword"
	"github.com/rcowham/cvs2git/internal/probe"
)

func main() {
	var (
		configFile = kingpin.Flag(
			"config",
			"Config file for cvs2git.",
		).Default("cvs2git.yaml").Short('c').String()
		cvsroot = kingpin.Arg(
			"cvsroot",
			"CVS repository root to walk.",
		).Required().String()
		targetRepo = kingpin.Arg(
			"targetrepo",
			"(Optional) existing git repository to resume from, for an incremental run.",
		).String()
		fuzz = kingpin.Flag(
			"fuzz",
			"Time fuzz in seconds for changeset clustering (overrides config).",
		).Default(fmt.Sprint(config.DefaultFuzz)).Short('z').Int64()
		emailDomain = kingpin.Flag(
			"email.domain",
			"Append @DOMAIN to author to form the committer email (overrides config).",
		).Short('e').String()
		encodings = kingpin.Flag(
			"encodings",
			"Comma-separated candidate encodings for decoding log messages (overrides config).",
		).Short('E').String()
		extraKeywords = kingpin.Flag(
			"keyword",
			"Register an additional RCS keyword carrying Id-like attributes. Repeatable.",
		).Short('k').Strings()
		modules = kingpin.Flag(
			"module",
			"Restrict the walk to a sub-path of the CVS root. Repeatable.",
		).Short('m').Strings()
		dumpAll = kingpin.Flag(
			"all",
			"Do not apply the 600-second tail safety window; emit every changeset.",
		).Short('a').Bool()
		branch = kingpin.Flag(
			"branch",
			"Target branch name (overrides config).",
		).Short('b').String()
		lastRevision = kingpin.Flag(
			"last-revision",
			"Explicit previous-tip reference for incremental resume.",
		).Short('l').String()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("cvs2git")).Author("Robert Cowham")
	kingpin.CommandLine.Help = "Reconstructs a CVS/RCS repository's history as a git fast-import stream\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	cfg, err := loadConfig(*configFile, logger)
	if err != nil {
		logger.Errorf("error loading config file: %v", err)
		os.Exit(1)
	}
	if *fuzz != config.DefaultFuzz {
		cfg.Fuzz = *fuzz
	}
	if *emailDomain != "" {
		cfg.EmailDomain = *emailDomain
	}
	if *encodings != "" {
		cfg.Encodings = strings.Split(*encodings, ",")
	}
	if *branch != "" {
		cfg.TargetBranch = *branch
	}
	cfg.ExtraKeywords = append(cfg.ExtraKeywords, *extraKeywords...)
	cfg.Modules = append(cfg.Modules, *modules...)
	for _, m := range cfg.Modules {
		if m == ".git" {
			logger.Errorf("cannot handle the path named '.git'")
			os.Exit(1)
		}
	}

	startTime := time.Now()
	logger.Infof("%v", version.Print("cvs2git"))
	logger.Infof("Starting %s, cvsroot: %v", startTime, *cvsroot)

	root := strings.TrimRight(*cvsroot, "/")

	expander := keyword.New()
	for _, k := range cfg.ExtraKeywords {
		expander.AddKeyword(k)
	}

	logger.Infof("** walk cvs tree")
	walker := &ingest.Walker{
		CvsRoot: root,
		Modules: cfg.Modules,
		Workers: runtime.NumCPU(),
		Logger:  logger,
	}
	markSeq := 0
	clusterer, _, err := ingest.Consume(walker.Walk(), cfg.Fuzz, &markSeq)
	if err != nil {
		logger.Errorf("error walking cvs tree: %v", err)
		os.Exit(1)
	}

	changesets := clusterer.Changesets()
	logger.Infof("** cvs has %d changeset", len(changesets))
	if len(changesets) == 0 {
		os.Exit(0)
	}

	var resumeState *tagResumeState
	isIncremental := *targetRepo != ""
	if isIncremental {
		prober := probe.NewGitProber(*targetRepo)
		tip, err := prober.Tip(*lastRevision)
		if err != nil {
			logger.Errorf("error probing target repository: %v", err)
			os.Exit(1)
		}
		author := probe.NormalizeAuthor(tip.Author, cfg.EmailDomain)
		remainder, rs, err := emit.Resume(changesets, emit.Tip{Time: tip.Time, Author: author})
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		changesets = remainder
		resumeState = &tagResumeState{rs: rs, fromRef: tip.Hash}
	}

	changesets = emit.WithholdTail(changesets, *dumpAll || cfg.DisableSafety)

	var buf bytes.Buffer
	writer := emit.NewFastImportWriter(&buf)
	markSpace := emit.NewMarkSpace(markSeq)

	for _, cs := range changesets {
		writeChangeset(writer, markSpace, cs, cfg, expander, root, resumeState)
		if resumeState != nil {
			resumeState.fromRef = ""
		}
	}

	if err := emit.ValidateFastImportStream(bytes.NewReader(buf.Bytes())); err != nil {
		logger.Errorf("refusing to emit invalid fast-import stream: %v", err)
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		logger.Errorf("error writing output: %v", err)
		os.Exit(1)
	}

	logger.Infof("** dumped")
}

// tagResumeState threads the incremental resume's excluded-tag set and
// the one-time "from <tip hash>" anchor through the emission loop.
type tagResumeState struct {
	rs      interface{ Excluded(string) bool }
	fromRef string
}

func writeChangeset(
	w *emit.FastImportWriter,
	marks *emit.MarkSpace,
	cs *changeset.Key,
	cfg *config.Config,
	expander *keyword.Expander,
	cvsRoot string,
	resume *tagResumeState,
) {
	revs := append([]changeset.FileRevision{}, cs.Revs...)
	sort.Slice(revs, func(i, j int) bool { return revs[i].Path < revs[j].Path })

	ops := make([]emit.FileOp, 0, len(revs))
	for _, rev := range revs {
		path := emit.NormalizePath(rev.Path, cvsRoot)
		if rev.State == "dead" {
			ops = append(ops, emit.FileOp{Path: path, Dead: true})
			continue
		}
		loaded, err := content.Load(rev.Path, rev.Rev, expander)
		if err != nil {
			panic(err)
		}
		mark := marks.Next()
		w.WriteBlob(mark, loaded.Data)
		mode := "100644"
		if loaded.Executable {
			mode = "100755"
		}
		ops = append(ops, emit.FileOp{Path: path, Mode: mode, Mark: mark})
	}

	rawLog, err := content.LoadLog(revs[0].Path, revs[0].Rev)
	if err != nil {
		panic(err)
	}
	log := emit.DecodeLog(rawLog, cfg.Encodings)

	author := cs.Author
	email := author
	if cfg.EmailDomain != "" {
		email = author + "@" + cfg.EmailDomain
	}

	branch := cs.Branch
	if branch == "HEAD" {
		branch = cfg.TargetBranch
	}
	branch = cfg.ResolveBranch(branch)

	commitMark := marks.Next()
	opts := emit.CommitOptions{
		Branch:       branch,
		Mark:         commitMark,
		Author:       author,
		Email:        email,
		TimestampUTC: cs.MinTime,
		Log:          log,
		Ops:          ops,
	}
	if resume != nil && resume.fromRef != "" {
		opts.FromRef = resume.fromRef
	}
	w.WriteCommit(opts)

	for _, tag := range cs.Tags {
		if resume != nil && resume.rs.Excluded(tag) {
			continue
		}
		w.WriteTag(tag, commitMark)
	}
}

func loadConfig(path string, logger *logrus.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		logger.Debugf("no config file at %s, using defaults", path)
		return config.Unmarshal(nil)
	}
	return config.LoadConfigFile(path)
}
