package main

// cvsgraph walks a CVS/RCS tree, clusters it into changesets the same
// way cvs2git/cvs2svndump do, and writes a graphviz DOT file showing
// the reconstructed branch/commit graph — the read-only visualization
// counterpart to the two stream-emitting binaries, adapted from
// gitgraph.go's fast-export-to-DOT walk to work straight off the
// clustered changeset set instead of parsing a git fast-export file.

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/emicklei/dot"
	"github.com/perforce/p4prometheus/version"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/cvs2git/config"
	"github.com/rcowham/cvs2git/internal/changeset"
	"github.com/rcowham/cvs2git/internal/ingest"
)

// changesetNode pairs one ordered changeset with the graph node built
// for it, mirroring GitCommit's commit/gNode pairing in gitgraph.go.
type changesetNode struct {
	cs       *changeset.Key
	index    int
	label    string
	gNode    dot.Node
	hasNode  bool
}

// CvsGraph walks a CVS tree and renders its reconstructed changeset
// graph, following GitGraph's logger/opts/graph shape.
type CvsGraph struct {
	logger *logrus.Logger
	opts   CvsGraphOption
	graph  *dot.Graph
}

type CvsGraphOption struct {
	cvsRoot      string
	graphFile    string
	fuzz         int64
	modules      []string
	firstIndex   int
	lastIndex    int
	maxChanges   int
	squash       bool
}

func NewCvsGraph(logger *logrus.Logger, opts *CvsGraphOption) *CvsGraph {
	return &CvsGraph{logger: logger, opts: *opts}
}

// BuildGraph walks g.opts.cvsRoot, clusters it into changesets, and
// draws one node per changeset (subject to firstIndex/lastIndex/
// maxChanges), with a "p" edge from each branch's previous drawn
// commit to the next one — squash, when set, skips every changeset
// that doesn't start, end, or switch branches, the same way gitgraph's
// squash option skips non-branching commits.
func (g *CvsGraph) BuildGraph() error {
	walker := &ingest.Walker{
		CvsRoot: g.opts.cvsRoot,
		Modules: g.opts.modules,
		Workers: runtime.NumCPU(),
		Logger:  g.logger,
	}
	markSeq := 0
	clusterer, _, err := ingest.Consume(walker.Walk(), g.opts.fuzz, &markSeq)
	if err != nil {
		return fmt.Errorf("cvsgraph: walking cvs tree: %w", err)
	}

	changesets := clusterer.Changesets()
	g.logger.Infof("** cvs has %d changeset", len(changesets))
	if g.opts.maxChanges != 0 && len(changesets) > g.opts.maxChanges {
		changesets = changesets[:g.opts.maxChanges]
	}

	lastBranchNode := make(map[string]*changesetNode)
	branchSkipCount := make(map[string]int)

	for i, cs := range changesets {
		if g.opts.firstIndex != 0 && i+1 < g.opts.firstIndex {
			continue
		}
		if g.opts.lastIndex != 0 && i+1 > g.opts.lastIndex {
			break
		}

		cn := &changesetNode{
			cs:    cs,
			index: i + 1,
			label: fmt.Sprintf("#%d %s (%s)", i+1, cs.Branch, cs.Author),
		}

		parent := lastBranchNode[cs.Branch]
		switchesBranch := parent == nil
		last := g.opts.lastIndex != 0 && cn.index == g.opts.lastIndex
		if g.opts.squash && !switchesBranch && !last && i+1 != g.opts.firstIndex && i+1 != len(changesets) {
			branchSkipCount[cs.Branch]++
			continue
		}

		cn.gNode = g.graph.Node(cn.label)
		cn.hasNode = true
		if parent != nil {
			label := "p"
			if skip := branchSkipCount[cs.Branch]; skip > 0 {
				label = fmt.Sprintf("p%d", skip)
			}
			g.graph.Edge(parent.gNode, cn.gNode, label)
		}
		lastBranchNode[cs.Branch] = cn
		branchSkipCount[cs.Branch] = 0
	}

	return nil
}

func main() {
	var (
		cvsroot = kingpin.Arg(
			"cvsroot",
			"CVS repository root to walk.",
		).Required().String()
		configFile = kingpin.Flag(
			"config",
			"Config file for cvsgraph.",
		).Default("cvs2git.yaml").Short('c').String()
		outputGraph = kingpin.Flag(
			"output",
			"Graphviz dot file to write the reconstructed changeset graph to.",
		).Short('o').Required().String()
		fuzz = kingpin.Flag(
			"fuzz",
			"Time fuzz in seconds for changeset clustering (overrides config).",
		).Default(fmt.Sprint(config.DefaultFuzz)).Short('z').Int64()
		modules = kingpin.Flag(
			"module",
			"Restrict the walk to a sub-path of the CVS root. Repeatable.",
		).Short('m').Strings()
		firstIndex = kingpin.Flag(
			"first.change",
			"1-based index of first changeset to include in graph output (default 0 means all).",
		).Default("0").Short('f').Int()
		lastIndex = kingpin.Flag(
			"last.change",
			"1-based index of last changeset to include in graph output (default 0 means all).",
		).Default("0").Short('l').Int()
		maxChanges = kingpin.Flag(
			"max.changes",
			"Max number of changesets to process (default 0 means all).",
		).Default("0").Int()
		squash = kingpin.Flag(
			"squash",
			"Squash commits (leaving branch points and merges only).",
		).Short('s').Bool()
		debug = kingpin.Flag(
			"debug",
			"Enable debugging level.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("cvsgraph")).Author("Robert Cowham")
	kingpin.CommandLine.Help = "Walks a CVS/RCS repository and writes its reconstructed changeset graph as a graphviz DOT file\n"
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
	cfg.Modules = append(cfg.Modules, *modules...)

	startTime := time.Now()
	logger.Infof("%v", version.Print("cvsgraph"))
	logger.Infof("Starting %s, cvsroot: %v", startTime, *cvsroot)
	logger.Infof("OS: %s/%s", runtime.GOOS, runtime.GOARCH)

	opts := &CvsGraphOption{
		cvsRoot:    strings.TrimRight(*cvsroot, "/"),
		graphFile:  *outputGraph,
		fuzz:       cfg.Fuzz,
		modules:    cfg.Modules,
		firstIndex: *firstIndex,
		lastIndex:  *lastIndex,
		maxChanges: *maxChanges,
		squash:     *squash,
	}
	g := NewCvsGraph(logger, opts)
	g.graph = dot.NewGraph(dot.Directed)
	if err := g.BuildGraph(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	f, err := os.OpenFile(g.opts.graphFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		logger.Errorf("error opening %s: %v", g.opts.graphFile, err)
		os.Exit(1)
	}
	defer f.Close()
	if _, err := f.Write([]byte(g.graph.String())); err != nil {
		logger.Errorf("error writing %s: %v", g.opts.graphFile, err)
		os.Exit(1)
	}
}

func loadConfig(path string, logger *logrus.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		logger.Debugf("no config file at %s, using defaults", path)
		return config.Unmarshal(nil)
	}
	return config.LoadConfigFile(path)
}
