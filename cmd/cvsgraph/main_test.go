package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/emicklei/dot"
)

const rcsFixtureA = `head	1.2;
access;
symbols;
locks; strict;
comment	@# @;


1.2
date	2024.05.06.12.31.00;	author carol;	state Exp;
branches;
next	1.1;


1.1
date	2024.05.06.12.30.00;	author carol;	state Exp;
branches;
next	;


desc
@@


1.2
log
@second@
text
@line two
@
1.1
log
@first@
text
@line one
@
`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	return logger
}

func TestBuildGraphDrawsOneNodePerChangeset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "file.txt,v"), []byte(rcsFixtureA), 0644); err != nil {
		t.Fatal(err)
	}

	g := NewCvsGraph(testLogger(), &CvsGraphOption{cvsRoot: dir, fuzz: 300})
	g.graph = dot.NewGraph(dot.Directed)
	if !assert.NoError(t, g.BuildGraph()) {
		return
	}
	assert.Contains(t, g.graph.String(), "digraph")
}
