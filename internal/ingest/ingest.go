// Package ingest fans per-file RCS parsing out across a worker pool and
// funnels the resulting selected revisions into a single-consumer
// channel, the permitted pre-stage parallelism called out by the
// engine's concurrency model: the clusterer itself stays single-threaded
// and synchronous. Grounded on the teacher's own pond.WorkerPool usage
// in main.go (SaveBlob/GitParse), adapted from saving git blobs to
// parsing RCS files.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alitto/pond"
	"github.com/sirupsen/logrus"

	"github.com/rcowham/cvs2git/internal/rcsfile"
	"github.com/rcowham/cvs2git/internal/selector"
)

// Result is one selected revision discovered while walking the CVS
// root, ready to be turned into a changeset.Key by the consumer.
type Result struct {
	Selected selector.Selected
	Err      error
}

// Walker discovers every ",v" file under one or more module roots and
// parses them concurrently, matching CvsConv.walk's os.walk loop
// (including its refusal to descend into a directory or file literally
// named ".git") but parallelized across a pond pool the way main.go
// parallelizes blob saving.
type Walker struct {
	CvsRoot string
	Modules []string // sub-paths to restrict the walk to; empty means the whole root
	Workers int       // pond pool size; 0 selects a reasonable default
	Logger  *logrus.Logger
}

// Walk discovers and parses every RCS file under w.CvsRoot (optionally
// restricted to w.Modules), sending one Result per selected revision to
// the returned channel. The channel is closed once every file has been
// parsed. Results arrive in worker-completion order, which varies run
// to run; Consume it with a single goroutine feeding changeset.Clusterer
// — the clusterer itself must never run concurrently, and Consume sorts
// into a canonical order before clustering so that ordering never
// leaks into the result.
func (w *Walker) Walk() <-chan Result {
	out := make(chan Result, 256)
	workers := w.Workers
	if workers <= 0 {
		workers = 10
	}
	pool := pond.New(workers, 0, pond.MinWorkers(workers))

	go func() {
		defer close(out)
		defer pool.StopAndWait()

		var wg sync.WaitGroup
		roots := w.Modules
		if len(roots) == 0 {
			roots = []string{""}
		}
		for _, module := range roots {
			root := w.CvsRoot
			if module != "" {
				root = filepath.Join(w.CvsRoot, module)
			}
			w.walkRoot(root, pool, &wg, out)
		}
		wg.Wait()
	}()

	return out
}

func (w *Walker) walkRoot(root string, pool *pond.WorkerPool, wg *sync.WaitGroup, out chan<- Result) {
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				if w.Logger != nil {
					w.Logger.Errorf("ignore %s: cannot handle the path named '.git'", path)
				}
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == ".git" {
			if w.Logger != nil {
				w.Logger.Errorf("ignore %s: cannot handle the path named '.git'", path)
			}
			return nil
		}
		if !strings.HasSuffix(path, ",v") {
			return nil
		}

		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			w.parseOne(path, out)
		})
		return nil
	})
	if err != nil && w.Logger != nil {
		w.Logger.Errorf("walk %s: %v", root, err)
	}
}

func (w *Walker) parseOne(path string, out chan<- Result) {
	f, err := rcsfile.Parse(path)
	if err != nil {
		out <- Result{Err: fmt.Errorf("ingest: parse %s: %w", path, err)}
		return
	}
	err = selector.Walk(f, path, func(s selector.Selected) error {
		out <- Result{Selected: s}
		return nil
	})
	if err != nil {
		out <- Result{Err: err}
	}
}
