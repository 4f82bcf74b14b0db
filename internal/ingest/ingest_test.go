package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

const fileAFixture = `head	1.1;
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

const fileBFixture = `head	1.1;
access;
symbols;
locks; strict;
comment	@# @;


1.1
date	2024.05.06.13.00.00;	author dave;	state Exp;
branches;
next	;


desc
@@


1.1
log
@another file@
text
@line one of b
@
`

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkDiscoversAllRCSFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.txt,v", fileAFixture)
	writeFixture(t, dir, "sub/b.txt,v", fileBFixture)
	writeFixture(t, dir, "README.txt", "not an rcs file")

	w := &Walker{CvsRoot: dir, Workers: 2, Logger: logrus.New()}
	var results []Result
	for r := range w.Walk() {
		results = append(results, r)
	}

	assert.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestWalkSkipsDotGit(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.txt,v", fileAFixture)
	writeFixture(t, dir, ".git/config,v", fileBFixture)

	w := &Walker{CvsRoot: dir, Workers: 1, Logger: logrus.New()}
	var results []Result
	for r := range w.Walk() {
		results = append(results, r)
	}

	assert.Len(t, results, 1)
}

func TestWalkRestrictsToModules(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mod1/a.txt,v", fileAFixture)
	writeFixture(t, dir, "mod2/b.txt,v", fileBFixture)

	w := &Walker{CvsRoot: dir, Modules: []string{"mod1"}, Workers: 1, Logger: logrus.New()}
	var results []Result
	for r := range w.Walk() {
		results = append(results, r)
	}

	if assert.Len(t, results, 1) {
		assert.Equal(t, "carol", results[0].Selected.Author)
	}
}
