package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcowham/cvs2git/internal/selector"
)

func selectedResult(path, rev, author string, ts int64, log string, tags []string) Result {
	return Result{Selected: selector.Selected{
		Path:      path,
		Rev:       rev,
		Branch:    "HEAD",
		Author:    author,
		Timestamp: ts,
		State:     "Exp",
		Log:       []byte(log),
		Tags:      tags,
	}}
}

func TestConsumeClustersMatchingRevisionsAndAttributesTags(t *testing.T) {
	ch := make(chan Result, 4)
	// Same branch, author, timestamp and log text: these two file
	// revisions belong to a single changeset. The tag on the second
	// revision lands on a Key that gets merged away by Clusterer.Put,
	// exercising the mergedInto/Resolve forwarding path.
	ch <- selectedResult("a.txt", "1.1", "carol", 1000, "shared message", []string{"tag1"})
	ch <- selectedResult("b.txt", "1.1", "carol", 1000, "shared message", []string{"tag2"})
	close(ch)

	markSeq := 0
	clusterer, _, err := Consume(ch, 300, &markSeq)
	if !assert.NoError(t, err) {
		return
	}

	changesets := clusterer.Changesets()
	if assert.Len(t, changesets, 1) {
		cs := changesets[0]
		assert.Len(t, cs.Revs, 2)
		assert.ElementsMatch(t, []string{"tag1", "tag2"}, cs.Tags)
	}
	assert.Equal(t, 2, markSeq)
}

func TestConsumeKeepsDraningAfterErrorAndReportsFirst(t *testing.T) {
	ch := make(chan Result, 3)
	firstErr := errors.New("parse boom")
	ch <- Result{Err: firstErr}
	ch <- selectedResult("a.txt", "1.1", "carol", 1000, "msg", nil)
	ch <- Result{Err: errors.New("second boom")}
	close(ch)

	markSeq := 0
	clusterer, _, err := Consume(ch, 300, &markSeq)
	assert.Equal(t, firstErr, err)
	assert.Len(t, clusterer.Changesets(), 1)
	assert.Equal(t, 1, markSeq)
}

func TestConsumeOrdersDeterministicallyRegardlessOfArrivalOrder(t *testing.T) {
	results := []Result{
		selectedResult("a.txt", "1.2", "carol", 2000, "m2", nil),
		selectedResult("b.txt", "1.1", "carol", 1000, "m1", nil),
		selectedResult("a.txt", "1.1", "carol", 1000, "m1", nil),
	}

	run := func(order []int) []string {
		ch := make(chan Result, len(results))
		for _, i := range order {
			ch <- results[i]
		}
		close(ch)
		markSeq := 0
		clusterer, _, err := Consume(ch, 300, &markSeq)
		if !assert.NoError(t, err) {
			return nil
		}
		var marks []string
		for _, cs := range clusterer.Changesets() {
			for _, r := range cs.Revs {
				marks = append(marks, r.Path+"@"+r.Rev)
			}
		}
		return marks
	}

	first := run([]int{0, 1, 2})
	second := run([]int{2, 1, 0})
	assert.Equal(t, first, second)
}

func TestConsumeKeepsDistinctChangesetsSeparate(t *testing.T) {
	ch := make(chan Result, 2)
	ch <- selectedResult("a.txt", "1.1", "carol", 1000, "first message", nil)
	ch <- selectedResult("b.txt", "1.1", "dave", 5000, "second message", nil)
	close(ch)

	markSeq := 0
	clusterer, _, err := Consume(ch, 300, &markSeq)
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, clusterer.Changesets(), 2)
}
