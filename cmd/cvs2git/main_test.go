package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/rcowham/cvs2git/config"
	"github.com/rcowham/cvs2git/internal/changeset"
	"github.com/rcowham/cvs2git/internal/emit"
	"github.com/rcowham/cvs2git/internal/keyword"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	return logger
}

const rcsFixture = `head	1.1;
access;
symbols;
locks; strict;
comment	@# @;


1.1
date	2024.05.06.12.30.00;	author carol;	state Exp;
branches;
next	;


desc
@@


1.1
log
@initial import@
text
@line one
@
`

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+",v")
	if err := os.WriteFile(path, []byte(rcsFixture), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteChangesetEmitsBlobCommitAndTags(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "example.txt")

	cfg, err := config.Unmarshal(nil)
	if !assert.NoError(t, err) {
		return
	}
	expander := keyword.New()

	cs := &changeset.Key{
		Branch:  "HEAD",
		Author:  "carol",
		MinTime: 1715000000,
		MaxTime: 1715000000,
		Revs:    []changeset.FileRevision{{Path: path, Rev: "1.1", State: "Exp"}},
		Tags:    []string{"v1"},
	}

	var buf bytes.Buffer
	w := emit.NewFastImportWriter(&buf)
	marks := emit.NewMarkSpace(0)
	writeChangeset(w, marks, cs, cfg, expander, dir, nil)

	out := buf.String()
	assert.Contains(t, out, "commit refs/heads/master")
	assert.Contains(t, out, "committer carol")
	assert.Contains(t, out, "initial import")
	assert.Contains(t, out, "M 100644 :1 example.txt")
	assert.Contains(t, out, "reset refs/tags/v1")
}

func TestWriteChangesetMarksDeadRevisionsAsDeletes(t *testing.T) {
	dir := t.TempDir()
	_ = writeFixture(t, dir, "removed.txt")

	cfg, err := config.Unmarshal(nil)
	if !assert.NoError(t, err) {
		return
	}
	expander := keyword.New()

	cs := &changeset.Key{
		Branch:  "HEAD",
		Author:  "carol",
		MinTime: 1715000000,
		MaxTime: 1715000000,
		Revs: []changeset.FileRevision{
			{Path: filepath.Join(dir, "removed.txt,v"), Rev: "1.1", State: "dead"},
		},
	}

	var buf bytes.Buffer
	w := emit.NewFastImportWriter(&buf)
	marks := emit.NewMarkSpace(0)
	writeChangeset(w, marks, cs, cfg, expander, dir, nil)

	out := buf.String()
	assert.Contains(t, out, "D removed.txt")
}

func TestWriteChangesetUsesFromRefOnlyOnFirstResumedCommit(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "example.txt")

	cfg, err := config.Unmarshal(nil)
	if !assert.NoError(t, err) {
		return
	}
	expander := keyword.New()

	cs := &changeset.Key{
		Branch:  "HEAD",
		Author:  "carol",
		MinTime: 1715000000,
		MaxTime: 1715000000,
		Revs:    []changeset.FileRevision{{Path: path, Rev: "1.1", State: "Exp"}},
	}

	resume := &tagResumeState{fromRef: "deadbeef"}
	var buf bytes.Buffer
	w := emit.NewFastImportWriter(&buf)
	marks := emit.NewMarkSpace(0)
	writeChangeset(w, marks, cs, cfg, expander, dir, resume)
	resume.fromRef = ""

	var buf2 bytes.Buffer
	w2 := emit.NewFastImportWriter(&buf2)
	writeChangeset(w2, marks, cs, cfg, expander, dir, resume)

	assert.Contains(t, buf.String(), "from deadbeef")
	assert.NotContains(t, buf2.String(), "from deadbeef")
}

func TestLoadConfigFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	logger := testLogger()

	cfg, err := loadConfig(filepath.Join(dir, "missing.yaml"), logger)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, config.DefaultFuzz, cfg.Fuzz)
	assert.Equal(t, config.DefaultBranch, cfg.TargetBranch)
}
