// cvs2svndump reconstructs a linear changeset history from a CVS/RCS
// repository and writes it to standard output as an SVN revision-dump
// stream, the centralized-VCS dialect alongside cvs2git's fast-import
// one. Shares the same walk/cluster/order/resume pipeline; only the
// stream writer and tip probe differ.
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
			"Config file for cvs2svndump.",
		).Default("cvs2git.yaml").Short('c').String()
		cvsroot = kingpin.Arg(
			"cvsroot",
			"CVS repository root to walk.",
		).Required().String()
		svnroot = kingpin.Arg(
			"svnroot",
			"(Optional) existing SVN repository to resume from, for an incremental run.",
		).String()
		svnpath = kingpin.Arg(
			"svnpath",
			"Destination sub-path within the SVN repository (requires svnroot).",
		).String()
		fuzz = kingpin.Flag(
			"fuzz",
			"Time fuzz in seconds for changeset clustering (overrides config).",
		).Default(fmt.Sprint(config.DefaultFuzz)).Short('z').Int64()
		emailDomain = kingpin.Flag(
			"email.domain",
			"Append @DOMAIN to author to form the svn:author property (overrides config).",
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
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("cvs2svndump")).Author("Robert Cowham")
	kingpin.CommandLine.Help = "Reconstructs a CVS/RCS repository's history as an SVN revision-dump stream\n"
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
	cfg.ExtraKeywords = append(cfg.ExtraKeywords, *extraKeywords...)
	cfg.Modules = append(cfg.Modules, *modules...)
	for _, m := range cfg.Modules {
		if m == ".git" {
			logger.Errorf("cannot handle the path named '.git'")
			os.Exit(1)
		}
	}

	startTime := time.Now()
	logger.Infof("%v", version.Print("cvs2svndump"))
	logger.Infof("Starting %s, cvsroot: %v", startTime, *cvsroot)

	root := strings.TrimRight(*cvsroot, "/")
	destPath := strings.Trim(*svnpath, "/")

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

	nextRevision := 1
	var resumeState *tagResumeState
	var existing probe.Tree
	isIncremental := *svnroot != ""
	if isIncremental {
		prober := probe.NewSvnProber(*svnroot)
		tip, err := prober.Tip()
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
		nextRevision = tip.Revision
		resumeState = &tagResumeState{rs: rs}

		existing, err = prober.ListPaths(tip.Revision - 1)
		if err != nil {
			logger.Errorf("error listing target repository paths: %v", err)
			os.Exit(1)
		}
	}

	changesets = emit.WithholdTail(changesets, *dumpAll || cfg.DisableSafety)

	var buf bytes.Buffer
	writer := emit.NewDumpWriter(&buf, destPath)
	if isIncremental {
		writer.SeedPaths(existing.Dirs, existing.Files)
	}

	revision := nextRevision
	for _, cs := range changesets {
		writeChangeset(writer, cs, cfg, expander, root, destPath, revision, resumeState, logger)
		revision++
	}

	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		logger.Errorf("error writing output: %v", err)
		os.Exit(1)
	}

	logger.Infof("** dumped")
}

// tagResumeState threads the incremental resume's excluded-tag set
// through the emission loop. SVN's dump dialect has no tag-as-ref
// concept of its own (tags fold into svn:log the way cvs2svndump.py
// records them), so this only gates whether a changeset's tag list is
// worth mentioning in the log at all.
type tagResumeState struct {
	rs interface{ Excluded(string) bool }
}

func writeChangeset(
	w *emit.DumpWriter,
	cs *changeset.Key,
	cfg *config.Config,
	expander *keyword.Expander,
	cvsRoot, destPath string,
	revision int,
	resume *tagResumeState,
	logger *logrus.Logger,
) {
	w.WriteFormatHeader()

	revs := append([]changeset.FileRevision{}, cs.Revs...)
	sort.Slice(revs, func(i, j int) bool { return revs[i].Path < revs[j].Path })

	rawLog, err := content.LoadLog(revs[0].Path, revs[0].Rev)
	if err != nil {
		panic(err)
	}
	log := string(emit.DecodeLog(rawLog, cfg.Encodings))
	if tags := liveTags(cs.Tags, resume); len(tags) > 0 {
		log += "\n\ntags: " + strings.Join(tags, ", ")
	}

	author := cs.Author
	email := author
	if cfg.EmailDomain != "" {
		email = author + "@" + cfg.EmailDomain
	}

	w.WriteRevisionHeader(emit.RevisionOptions{
		Number: revision,
		Author: author,
		Email:  email,
		Time:   cs.MinTime,
		Log:    log,
	})

	for _, rev := range revs {
		nodePath := emit.NodePath(cvsRoot, destPath, rev.Path)
		if rev.State == "dead" {
			if !w.WriteFileDelete(nodePath) {
				logger.Debugf("remove, but it does not exist: %s", nodePath)
			}
			continue
		}
		loaded, err := content.Load(rev.Path, rev.Rev, expander)
		if err != nil {
			panic(err)
		}
		w.WriteFile(nodePath, loaded.Data, loaded.Executable)
	}
}

func liveTags(tags []string, resume *tagResumeState) []string {
	if resume == nil {
		return tags
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if resume.rs.Excluded(tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func loadConfig(path string, logger *logrus.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		logger.Debugf("no config file at %s, using defaults", path)
		return config.Unmarshal(nil)
	}
	return config.LoadConfigFile(path)
}
